package contentstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"agentsend/internal/storage"
)

const cidAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Mock stores payloads in the local KV under generated CID-shaped
// identifiers, standing in for a real content-addressed network.
type Mock struct {
	kv storage.KV
}

func NewMock(kv storage.KV) *Mock {
	return &Mock{kv: storage.Namespace(kv, "ipfs")}
}

func (m *Mock) Publish(ctx context.Context, p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	ref, err := generateCID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	if err := m.kv.Set(ctx, ref, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return ref, nil
}

func (m *Mock) Fetch(ctx context.Context, ref string) (Payload, error) {
	var p Payload
	data, err := m.kv.Get(ctx, ref)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	return p, nil
}

// generateCID produces a mock identifier with the conventional "Qm" prefix.
func generateCID() (string, error) {
	buf := make([]byte, 44)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = cidAlphabet[int(b)%len(cidAlphabet)]
	}
	return "Qm" + string(buf), nil
}
