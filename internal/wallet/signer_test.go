package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsend/internal/cryptographic/keys"
)

func TestSignDeterministicPerKey(t *testing.T) {
	s, err := NewLocalSigner()
	require.NoError(t, err)

	first, err := s.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	second, err := s.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The material feeds deterministic key derivation: same wallet, same
	// encryption keys on any device.
	kpA, err := keys.Derive(first)
	require.NoError(t, err)
	kpB, err := keys.Derive(second)
	require.NoError(t, err)
	assert.Equal(t, kpA, kpB)
}

func TestSignerRestoredFromSeed(t *testing.T) {
	s, err := NewLocalSigner()
	require.NoError(t, err)

	restored, err := NewLocalSignerFromSeed(s.PrivateKey())
	require.NoError(t, err)

	a, err := s.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	b, err := restored.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignerSeedLength(t *testing.T) {
	_, err := NewLocalSignerFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestDistinctSignersDistinctMaterial(t *testing.T) {
	a, err := NewLocalSigner()
	require.NoError(t, err)
	b, err := NewLocalSigner()
	require.NoError(t, err)

	ma, err := a.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	mb, err := b.Sign(KeyDerivationChallenge)
	require.NoError(t, err)
	assert.NotEqual(t, ma, mb)
}
