package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"

	"agentsend/internal/model"
)

// ErrInvalidSignatureMaterial is returned when the wallet signature artifact
// has the wrong shape. Checked before any hashing happens.
var ErrInvalidSignatureMaterial = errors.New("invalid signature material")

// Derive turns wallet signature material into a deterministic X25519 key
// pair: the signature components are concatenated, hashed to a 32-byte seed,
// and the seed is used as the secret key. Re-signing the same challenge on a
// new device recovers the same pair.
func Derive(material model.SignatureMaterial) (model.KeyPair, error) {
	var kp model.KeyPair
	if len(material) == 0 {
		return kp, fmt.Errorf("%w: empty", ErrInvalidSignatureMaterial)
	}
	for _, part := range material {
		if part == "" {
			return kp, fmt.Errorf("%w: empty component", ErrInvalidSignatureMaterial)
		}
	}

	seed := sha256.Sum256([]byte(strings.Join(material, "")))
	kp.SecretKey = seed
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.SecretKey)
	return kp, nil
}

// Generate returns a fresh random key pair.
func Generate() (model.KeyPair, error) {
	var kp model.KeyPair
	if _, err := rand.Read(kp.SecretKey[:]); err != nil {
		return kp, fmt.Errorf("failed to generate secret key: %w", err)
	}
	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.SecretKey)
	return kp, nil
}
