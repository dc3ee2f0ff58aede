package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/box"

	"agentsend/internal/model"
)

var (
	// ErrEncryptionFailed is fatal: the random source or library broke.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed covers corrupted ciphertext, a wrong nonce and
	// mismatched keys alike. Callers must not distinguish between them.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Seal encrypts plaintext for the recipient using X25519-XSalsa20-Poly1305.
// A fresh random 24-byte nonce is drawn per call; the nonce space is large
// enough that random draws will not repeat for the same key pair.
func Seal(plaintext []byte, recipientPub, senderSec *[32]byte) (model.Envelope, error) {
	var env model.Envelope
	if _, err := io.ReadFull(rand.Reader, env.Nonce[:]); err != nil {
		return env, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	env.Ciphertext = box.Seal(nil, plaintext, &env.Nonce, recipientPub, senderSec)
	return env, nil
}

// Open authenticates and decrypts an envelope. Failure is the only
// authentication signal.
func Open(env model.Envelope, senderPub, recipientSec *[32]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, env.Ciphertext, &env.Nonce, senderPub, recipientSec)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
