package contentstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsend/internal/model"
	"agentsend/internal/storage"
)

func TestMockPublishFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMock(storage.NewMemory())

	payload := Payload{
		Sender:    "0xalice",
		Recipient: "0xbob",
		Envelope:  model.Envelope{Ciphertext: []byte{0xde, 0xad}, Nonce: [24]byte{1}},
		Timestamp: time.Now().Truncate(time.Millisecond),
	}

	ref, err := m.Publish(ctx, payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "Qm"), "ref %q missing CID prefix", ref)
	assert.Len(t, ref, 46)

	got, err := m.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, payload.Sender, got.Sender)
	assert.Equal(t, payload.Envelope.Ciphertext, got.Envelope.Ciphertext)
	assert.Equal(t, payload.Envelope.Nonce, got.Envelope.Nonce)
	assert.True(t, payload.Timestamp.Equal(got.Timestamp))
}

func TestMockFetchMissing(t *testing.T) {
	m := NewMock(storage.NewMemory())
	_, err := m.Fetch(context.Background(), "QmDoesNotExist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockRefsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMock(storage.NewMemory())
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref, err := m.Publish(ctx, Payload{Sender: "0xalice"})
		require.NoError(t, err)
		require.False(t, seen[ref])
		seen[ref] = true
	}
}
