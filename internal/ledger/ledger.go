// Package ledger implements the privacy-preserving transfer layer that
// carries message content references. The Backend interface has two
// variants: Simulated, a local mock with delayed confirmations, and Chain,
// which submits through the relay's transfer network. The variant is picked
// once at construction; call sites never branch on mock-ness.
package ledger

import (
	"context"
	"errors"

	"agentsend/internal/model"
)

var (
	ErrNotInitialized      = errors.New("ledger not initialized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPendingBalance    = errors.New("no pending balance to claim")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type (
	EventKind int

	// Event reports out-of-band progress of a submitted transfer.
	Event struct {
		TransferID string
		TxRef      string
		Kind       EventKind
	}

	Backend interface {
		// Init loads persisted state and marks the account ready. Every
		// other call fails with ErrNotInitialized before Init.
		Init(ctx context.Context) error

		// Fund credits the spendable balance and returns a transaction
		// reference.
		Fund(ctx context.Context, amount *model.Amount) (string, error)

		// Transfer atomically moves amount from current to pending, records
		// the transfer with its payload reference, and schedules an
		// asynchronous confirmation. It returns the transaction reference
		// without waiting for finality.
		Transfer(ctx context.Context, recipient string, amount *model.Amount, payloadRef string) (string, error)

		// Rollover claims all pending balance into current.
		Rollover(ctx context.Context) (string, error)

		Balance() model.Balance
		History() []model.TransferRecord

		// Events delivers pick-up and confirmation notifications. The
		// channel is closed by Close.
		Events() <-chan Event

		Close()
	}
)

const (
	// EventPickedUp: the relay took the transfer into the shielded pool.
	EventPickedUp EventKind = iota
	// EventConfirmed: finality reached; pending balance was released.
	EventConfirmed
)
