package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsend/internal/cryptographic/keys"
	"agentsend/internal/model"
)

func pair(t *testing.T) model.KeyPair {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	return kp
}

func TestSealOpenRoundTrip(t *testing.T) {
	alice, bob := pair(t), pair(t)
	plaintext := []byte("the shielded pool keeps its secrets")

	env, err := Seal(plaintext, &bob.PublicKey, &alice.SecretKey)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, env.Ciphertext)

	got, err := Open(env, &alice.PublicKey, &bob.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenTamperedCiphertext(t *testing.T) {
	alice, bob := pair(t), pair(t)
	env, err := Seal([]byte("payload"), &bob.PublicKey, &alice.SecretKey)
	require.NoError(t, err)

	for i := range env.Ciphertext {
		tampered := env
		tampered.Ciphertext = append([]byte(nil), env.Ciphertext...)
		tampered.Ciphertext[i] ^= 0x01
		_, err := Open(tampered, &alice.PublicKey, &bob.SecretKey)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestOpenTamperedNonce(t *testing.T) {
	alice, bob := pair(t), pair(t)
	env, err := Seal([]byte("payload"), &bob.PublicKey, &alice.SecretKey)
	require.NoError(t, err)

	for i := range env.Nonce {
		tampered := env
		tampered.Nonce[i] ^= 0x01
		_, err := Open(tampered, &alice.PublicKey, &bob.SecretKey)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestOpenWrongKeys(t *testing.T) {
	alice, bob, eve := pair(t), pair(t), pair(t)
	env, err := Seal([]byte("payload"), &bob.PublicKey, &alice.SecretKey)
	require.NoError(t, err)

	_, err = Open(env, &alice.PublicKey, &eve.SecretKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = Open(env, &eve.PublicKey, &bob.SecretKey)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNonceUniqueness(t *testing.T) {
	alice, bob := pair(t), pair(t)
	seen := make(map[[24]byte]bool, 10000)
	for i := 0; i < 10000; i++ {
		env, err := Seal([]byte("same plaintext"), &bob.PublicKey, &alice.SecretKey)
		require.NoError(t, err)
		require.False(t, seen[env.Nonce], "nonce reused on iteration %d", i)
		seen[env.Nonce] = true
	}
}
