package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"agentsend/internal/model"
)

// KeyDerivationChallenge is the fixed message every account signs to derive
// its encryption keys. Changing it invalidates every derived key pair.
const KeyDerivationChallenge = "AgentSend keygen v1"

type (
	// Signer models the external wallet: it produces opaque signature
	// material whose internal structure the core never interprets.
	Signer interface {
		Sign(challenge string) (model.SignatureMaterial, error)
	}

	// LocalSigner signs with an in-process ed25519 key. It stands in for a
	// real wallet in the demo client and in tests; the same key always
	// yields the same material for the same challenge.
	LocalSigner struct {
		priv ed25519.PrivateKey
	}
)

func NewLocalSigner() (*LocalSigner, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signer key: %w", err)
	}
	return &LocalSigner{priv: priv}, nil
}

// NewLocalSignerFromSeed builds a signer from a stored 64-byte private key,
// so an account keeps its identity across sessions.
func NewLocalSignerFromSeed(priv []byte) (*LocalSigner, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signer private key must be %d bytes, got %d",
			ed25519.PrivateKeySize, len(priv))
	}
	return &LocalSigner{priv: ed25519.PrivateKey(priv)}, nil
}

// Sign produces two hex components, mirroring the r/s split wallets return.
func (s *LocalSigner) Sign(challenge string) (model.SignatureMaterial, error) {
	sig := ed25519.Sign(s.priv, []byte(challenge))
	return model.SignatureMaterial{
		hex.EncodeToString(sig[:32]),
		hex.EncodeToString(sig[32:]),
	}, nil
}

// PrivateKey exposes the raw key for persistence.
func (s *LocalSigner) PrivateKey() []byte {
	return s.priv
}
