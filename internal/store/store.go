// Package store keeps the local account's message log and the conversation
// index derived from it. The log is append-only; every mutation rebuilds the
// derived index from a fresh snapshot, so readers never observe a partially
// updated view.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"agentsend/internal/model"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrBackwardTransition marks an attempted status regression. Treated as
	// a logic error by callers; the store refuses it rather than panicking
	// because background confirmations can race a local failure.
	ErrBackwardTransition = errors.New("backward status transition")
	// ErrFieldAlreadySet guards the write-once content and transfer refs.
	ErrFieldAlreadySet = errors.New("field already set")
)

type Store struct {
	identity string
	kv       storage.KV

	mu  sync.RWMutex
	msg []model.Message
	idx []model.Conversation
}

// New loads any persisted log for identity from kv and rebuilds the index.
func New(ctx context.Context, kv storage.KV, identity string) (*Store, error) {
	s := &Store{
		identity: identity,
		kv:       storage.Namespace(kv, "messages"),
	}
	data, err := s.kv.Get(ctx, strings.ToLower(identity))
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("load message log: %w", err)
	}
	if data != nil {
		if err := json.Unmarshal(data, &s.msg); err != nil {
			return nil, fmt.Errorf("decode message log: %w", err)
		}
	}
	s.idx = deriveConversations(s.identity, s.msg)
	return s, nil
}

// Append adds a message with its creation-time status and recomputes the
// conversation index. Insertion order is preserved for timestamp ties.
func (s *Store) Append(ctx context.Context, m model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = append(s.msg, m)
	s.idx = deriveConversations(s.identity, s.msg)
	return s.persist(ctx)
}

// UpdateStatus advances the message's status. transferRef, when non-empty,
// is recorded write-once alongside the transition. Backward transitions are
// refused with ErrBackwardTransition.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status, transferRef string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return model.Message{}, ErrMessageNotFound
	}
	m := &s.msg[i]
	if !m.Status.CanAdvanceTo(status) {
		log.Error("refused status regression",
			zap.String("message_id", id),
			zap.String("from", string(m.Status)),
			zap.String("to", string(status)))
		return model.Message{}, fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, m.Status, status)
	}
	if transferRef != "" {
		if m.TransferRef != "" && m.TransferRef != transferRef {
			return model.Message{}, fmt.Errorf("transfer ref: %w", ErrFieldAlreadySet)
		}
		m.TransferRef = transferRef
	}
	m.Status = status
	s.idx = deriveConversations(s.identity, s.msg)
	return *m, s.persist(ctx)
}

// Fail moves the message to the terminal failed state, preserving every
// field set by earlier successful steps.
func (s *Store) Fail(ctx context.Context, id, reason string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return model.Message{}, ErrMessageNotFound
	}
	m := &s.msg[i]
	if !m.Status.CanAdvanceTo(model.StatusFailed) {
		return model.Message{}, fmt.Errorf("%w: %s -> failed", ErrBackwardTransition, m.Status)
	}
	m.Status = model.StatusFailed
	m.FailReason = reason
	s.idx = deriveConversations(s.identity, s.msg)
	return *m, s.persist(ctx)
}

// SetEnvelope attaches the encryption result to the message. Write-once.
func (s *Store) SetEnvelope(ctx context.Context, id string, env model.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	if s.msg[i].Envelope != nil {
		return fmt.Errorf("envelope: %w", ErrFieldAlreadySet)
	}
	s.msg[i].Envelope = &env
	return s.persist(ctx)
}

// SetContentRef records the content store identifier. Write-once.
func (s *Store) SetContentRef(ctx context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	if s.msg[i].ContentRef != "" {
		return fmt.Errorf("content ref: %w", ErrFieldAlreadySet)
	}
	s.msg[i].ContentRef = ref
	return s.persist(ctx)
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.find(id)
	if i < 0 {
		return model.Message{}, ErrMessageNotFound
	}
	return s.msg[i], nil
}

// ConversationMessages returns the messages exchanged with counterpart,
// ascending by timestamp, insertion order preserved on ties.
func (s *Store) ConversationMessages(counterpart string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.msg {
		if s.inConversation(&m, counterpart) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Conversations returns one entry per counterpart, most recently active
// first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, len(s.idx))
	copy(out, s.idx)
	return out
}

// Delete removes a message and recomputes the index.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	s.msg = append(s.msg[:i], s.msg[i+1:]...)
	s.idx = deriveConversations(s.identity, s.msg)
	return s.persist(ctx)
}

// Clear drops the whole log.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = nil
	s.idx = nil
	return s.kv.Delete(ctx, strings.ToLower(s.identity))
}

// Export dumps the log as indented JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.msg, "", "  ")
}

func (s *Store) find(id string) int {
	for i := range s.msg {
		if s.msg[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) inConversation(m *model.Message, counterpart string) bool {
	local, other := strings.ToLower(s.identity), strings.ToLower(counterpart)
	snd, rcv := strings.ToLower(m.Sender), strings.ToLower(m.Recipient)
	return (snd == local && rcv == other) || (snd == other && rcv == local)
}

func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.msg)
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}
	if err := s.kv.Set(ctx, strings.ToLower(s.identity), data); err != nil {
		return fmt.Errorf("persist message log: %w", err)
	}
	return nil
}

func deriveConversations(identity string, msgs []model.Message) []model.Conversation {
	byPeer := make(map[string]model.Conversation)
	for i := range msgs {
		m := msgs[i]
		peer := m.Counterpart(identity)
		key := strings.ToLower(peer)
		cur, ok := byPeer[key]
		if !ok || !m.CreatedAt.Before(cur.UpdatedAt) {
			last := m
			byPeer[key] = model.Conversation{
				Counterpart: peer,
				LastMessage: &last,
				UpdatedAt:   m.CreatedAt,
			}
		}
	}
	out := make([]model.Conversation, 0, len(byPeer))
	for _, c := range byPeer {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
