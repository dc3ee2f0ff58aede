// Package storage provides the key-value persistence used for per-account
// local state. Every consumer receives an injected, namespaced KV rather
// than reaching for ambient globals, so tests can swap in memory stores and
// multiple accounts can coexist in one process.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for keys that were never set.
var ErrKeyNotFound = errors.New("key not found")

type KV interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type namespaced struct {
	kv     KV
	prefix string
}

// Namespace scopes all keys of kv under prefix. Keys returned by Keys are
// reported without the prefix.
func Namespace(kv KV, prefix string) KV {
	return &namespaced{kv: kv, prefix: prefix + ":"}
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.kv.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k[len(n.prefix):])
	}
	return out, nil
}
