package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, kv.Set(ctx, "a", []byte("1")))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// Mutating the returned slice must not affect the stored value.
	v[0] = 'x'
	v, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, "msg:1", nil))
	require.NoError(t, kv.Set(ctx, "msg:2", nil))
	require.NoError(t, kv.Set(ctx, "other", nil))

	keys, err := kv.Keys(ctx, "msg:")
	require.NoError(t, err)
	assert.Equal(t, []string{"msg:1", "msg:2"}, keys)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	alice := Namespace(kv, "acct:alice")
	bob := Namespace(kv, "acct:bob")

	require.NoError(t, alice.Set(ctx, "balance", []byte("100")))
	require.NoError(t, bob.Set(ctx, "balance", []byte("7")))

	v, err := alice.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Equal(t, []byte("100"), v)

	v, err = bob.Get(ctx, "balance")
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), v)

	keys, err := alice.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"balance"}, keys)
}
