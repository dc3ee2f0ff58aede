// Package directory maps account identities to their published encryption
// public keys. It is a last-write-wins registry standing in for an on-chain
// key registry; a lookup miss means the recipient never initialized
// encryption, which callers must surface as such.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentsend/internal/model"
	"agentsend/internal/storage"
)

// ErrNotFound is returned for identities that never published a key.
var ErrNotFound = errors.New("public key not found")

type Directory struct {
	kv storage.KV
}

func New(kv storage.KV) *Directory {
	return &Directory{kv: storage.Namespace(kv, "pubkeys")}
}

// Publish registers the encryption public key for identity, replacing any
// previous key. Identities are matched case-insensitively.
func (d *Directory) Publish(ctx context.Context, identity string, pub [32]byte) error {
	kp := model.KeyPair{PublicKey: pub}
	if err := d.kv.Set(ctx, strings.ToLower(identity), []byte(kp.PublicKeyString())); err != nil {
		return fmt.Errorf("publish key for %s: %w", identity, err)
	}
	return nil
}

// Lookup resolves the published public key for identity.
func (d *Directory) Lookup(ctx context.Context, identity string) ([32]byte, error) {
	v, err := d.kv.Get(ctx, strings.ToLower(identity))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return [32]byte{}, ErrNotFound
	}
	if err != nil {
		return [32]byte{}, fmt.Errorf("lookup key for %s: %w", identity, err)
	}
	pub, err := model.ParsePublicKey(string(v))
	if err != nil {
		return [32]byte{}, fmt.Errorf("stored key for %s: %w", identity, err)
	}
	return pub, nil
}
