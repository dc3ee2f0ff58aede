package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsend/internal/model"
	"agentsend/internal/storage"
)

const local = "0xAlice"

func newStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := New(context.Background(), kv, local)
	require.NoError(t, err)
	return s
}

func msg(id, sender, recipient string, at time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: model.ConversationID(sender, recipient),
		Sender:         sender,
		Recipient:      recipient,
		Plaintext:      "hi " + id,
		Status:         model.StatusEncrypting,
		CreatedAt:      at,
	}
}

func TestConversationFiltering(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	t0 := time.Now()

	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", t0)))
	require.NoError(t, s.Append(ctx, msg("m2", "0xbob", local, t0.Add(time.Second))))
	require.NoError(t, s.Append(ctx, msg("m3", local, "0xCarol", t0.Add(2*time.Second))))

	got := s.ConversationMessages("0xBOB")
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)

	got = s.ConversationMessages("0xcarol")
	require.Len(t, got, 1)
	assert.Equal(t, "m3", got[0].ID)
}

func TestConversationMessagesAscendingStableTies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	t0 := time.Now()

	// m-late inserted first but timestamped later; tie between m-a and m-b
	// must keep insertion order.
	require.NoError(t, s.Append(ctx, msg("m-late", local, "0xBob", t0.Add(time.Minute))))
	require.NoError(t, s.Append(ctx, msg("m-a", local, "0xBob", t0)))
	require.NoError(t, s.Append(ctx, msg("m-b", "0xBob", local, t0)))

	got := s.ConversationMessages("0xbob")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m-a", "m-b", "m-late"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestConversationsSummary(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	t0 := time.Now()

	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", t0)))
	require.NoError(t, s.Append(ctx, msg("m2", local, "0xCarol", t0.Add(time.Second))))
	require.NoError(t, s.Append(ctx, msg("m3", "0xBob", local, t0.Add(2*time.Second))))

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "0xBob", convs[0].Counterpart)
	assert.Equal(t, "m3", convs[0].LastMessage.ID)
	assert.Equal(t, "0xCarol", convs[1].Counterpart)
	assert.Equal(t, "m2", convs[1].LastMessage.ID)
}

func TestUpdateStatusForward(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))

	updated, err := s.UpdateStatus(ctx, "m1", model.StatusSending, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSending, updated.Status)

	updated, err = s.UpdateStatus(ctx, "m1", model.StatusPending, "0xtx1")
	require.NoError(t, err)
	assert.Equal(t, "0xtx1", updated.TransferRef)

	// Skipping in_pool is a legal forward move.
	updated, err = s.UpdateStatus(ctx, "m1", model.StatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, updated.Status)
}

func TestUpdateStatusBackwardRefused(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))

	_, err := s.UpdateStatus(ctx, "m1", model.StatusPending, "")
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, "m1", model.StatusEncrypting, "")
	assert.ErrorIs(t, err, ErrBackwardTransition)

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestTerminalStates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))

	failed, err := s.Fail(ctx, "m1", "TransferFailed")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, "TransferFailed", failed.FailReason)

	// A racing confirmation must not resurrect a failed message.
	_, err = s.UpdateStatus(ctx, "m1", model.StatusConfirmed, "")
	assert.ErrorIs(t, err, ErrBackwardTransition)
}

func TestWriteOnceRefs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))

	require.NoError(t, s.SetContentRef(ctx, "m1", "QmFirst"))
	err := s.SetContentRef(ctx, "m1", "QmSecond")
	assert.ErrorIs(t, err, ErrFieldAlreadySet)

	got, err := s.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, "QmFirst", got.ContentRef)

	env := model.Envelope{Ciphertext: []byte{1, 2, 3}}
	require.NoError(t, s.SetEnvelope(ctx, "m1", env))
	assert.ErrorIs(t, s.SetEnvelope(ctx, "m1", env), ErrFieldAlreadySet)
}

func TestFailurePreservesEarlierFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))
	require.NoError(t, s.SetContentRef(ctx, "m1", "QmKeepMe"))
	_, err := s.UpdateStatus(ctx, "m1", model.StatusSending, "")
	require.NoError(t, err)

	failed, err := s.Fail(ctx, "m1", "TransferFailed")
	require.NoError(t, err)
	assert.Equal(t, "QmKeepMe", failed.ContentRef)
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))
	require.NoError(t, s.Append(ctx, msg("m2", local, "0xBob", time.Now())))

	require.NoError(t, s.Delete(ctx, "m1"))
	_, err := s.Get("m1")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Len(t, s.ConversationMessages("0xbob"), 1)

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.ConversationMessages("0xbob"))
	assert.Empty(t, s.Conversations())
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	s := newStore(t, kv)
	require.NoError(t, s.Append(ctx, msg("m1", local, "0xBob", time.Now())))
	_, err := s.UpdateStatus(ctx, "m1", model.StatusPending, "0xtx1")
	require.NoError(t, err)

	reloaded := newStore(t, kv)
	got, err := reloaded.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, "0xtx1", got.TransferRef)
	require.Len(t, reloaded.Conversations(), 1)
}
