package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var (
	ErrBadKeyLength   = errors.New("key must be 32 bytes")
	ErrBadNonceLength = errors.New("nonce must be 24 bytes")
)

type (
	// KeyPair holds an X25519 key pair used for message encryption.
	// The secret key never leaves the local session.
	KeyPair struct {
		PublicKey [32]byte
		SecretKey [32]byte
	}

	// SignatureMaterial is the opaque wallet-signature artifact consumed by
	// key derivation: the ordered component fields of the signature.
	SignatureMaterial []string

	// Envelope is the output of one encryption call. Immutable once created.
	Envelope struct {
		Ciphertext []byte
		Nonce      [24]byte
	}
)

// PublicKeyString returns the base64 form used for storage and transmission.
func (kp *KeyPair) PublicKeyString() string {
	return base64.StdEncoding.EncodeToString(kp.PublicKey[:])
}

// ParsePublicKey decodes a base64 public key string.
func ParsePublicKey(s string) (pub [32]byte, err error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pub, err
	}
	if len(b) != 32 {
		return pub, ErrBadKeyLength
	}
	copy(pub[:], b)
	return pub, nil
}

type keyPairJSON struct {
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key"`
}

func (kp KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyPairJSON{
		PublicKey: base64.StdEncoding.EncodeToString(kp.PublicKey[:]),
		SecretKey: base64.StdEncoding.EncodeToString(kp.SecretKey[:]),
	})
}

func (kp *KeyPair) UnmarshalJSON(data []byte) error {
	var raw keyPairJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pub, err := ParsePublicKey(raw.PublicKey)
	if err != nil {
		return err
	}
	sec, err := ParsePublicKey(raw.SecretKey)
	if err != nil {
		return err
	}
	kp.PublicKey = pub
	kp.SecretKey = sec
	return nil
}

type envelopeJSON struct {
	Ciphertext string `json:"ciphertext"`
	Nonce      string `json:"nonce"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		Ciphertext: base64.StdEncoding.EncodeToString(e.Ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(e.Nonce[:]),
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ct, err := base64.StdEncoding.DecodeString(raw.Ciphertext)
	if err != nil {
		return err
	}
	nonce, err := base64.StdEncoding.DecodeString(raw.Nonce)
	if err != nil {
		return err
	}
	if len(nonce) != 24 {
		return ErrBadNonceLength
	}
	e.Ciphertext = ct
	copy(e.Nonce[:], nonce)
	return nil
}
