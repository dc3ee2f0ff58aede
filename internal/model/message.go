package model

import (
	"sort"
	"strings"
	"time"
)

type (
	// Status tracks a message through its send lifecycle.
	Status string

	Message struct {
		ID             string    `json:"id"`
		ConversationID string    `json:"conversation_id"`
		Sender         string    `json:"sender"`
		Recipient      string    `json:"recipient"`
		Plaintext      string    `json:"plaintext,omitempty"` // known only locally
		Envelope       *Envelope `json:"envelope,omitempty"`
		ContentRef     string    `json:"content_ref,omitempty"`
		TransferRef    string    `json:"transfer_ref,omitempty"`
		Status         Status    `json:"status"`
		FailReason     string    `json:"fail_reason,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
	}

	// Conversation is derived from the message log, never stored.
	Conversation struct {
		Counterpart string
		LastMessage *Message
		UpdatedAt   time.Time
	}
)

const (
	StatusEncrypting Status = "encrypting"
	StatusSending    Status = "sending"
	StatusPending    Status = "pending"
	StatusInPool     Status = "in_pool"
	StatusConfirmed  Status = "confirmed"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusEncrypting: 0,
	StatusSending:    1,
	StatusPending:    2,
	StatusInPool:     3,
	StatusConfirmed:  4,
	StatusDelivered:  5,
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// failed is reachable from any non-terminal state.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ConversationID derives the identifier for the unordered pair of
// participants, so both sides compute the same value.
func ConversationID(a, b string) string {
	pair := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// Counterpart returns the other participant relative to identity.
func (m *Message) Counterpart(identity string) string {
	if strings.EqualFold(m.Sender, identity) {
		return m.Recipient
	}
	return m.Sender
}
