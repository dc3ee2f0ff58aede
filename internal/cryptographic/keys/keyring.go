package keys

import (
	"context"
	"encoding/json"
	"strings"

	"agentsend/internal/model"
	"agentsend/internal/storage"
)

// Keyring persists one derived key pair per account identity so a session
// does not have to re-request a wallet signature on every start.
type Keyring struct {
	kv storage.KV
}

func NewKeyring(kv storage.KV) *Keyring {
	return &Keyring{kv: storage.Namespace(kv, "keys")}
}

func (r *Keyring) Store(ctx context.Context, identity string, kp model.KeyPair) error {
	data, err := json.Marshal(kp)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, strings.ToLower(identity), data)
}

// Load returns the stored pair for identity, or storage.ErrKeyNotFound.
func (r *Keyring) Load(ctx context.Context, identity string) (model.KeyPair, error) {
	var kp model.KeyPair
	data, err := r.kv.Get(ctx, strings.ToLower(identity))
	if err != nil {
		return kp, err
	}
	if err := json.Unmarshal(data, &kp); err != nil {
		return kp, err
	}
	return kp, nil
}
