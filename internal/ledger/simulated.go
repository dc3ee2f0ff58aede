package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentsend/internal/model"
	"agentsend/internal/storage"
	"agentsend/internal/utils/log"
)

// Simulated is the mocked transfer backend. Confirmation is driven by a
// cancellable timer per transfer: halfway through the delay the transfer is
// reported picked up by the relay, at the full delay it confirms.
//
// Confirming releases the pending amount without crediting it back to
// current: the carrier amount is spent on sending the message. The
// recipient's claimable balance lives on their own ledger, which this mock
// does not model.
type Simulated struct {
	identity     string
	confirmDelay time.Duration
	kv           storage.KV

	mu          sync.Mutex
	initialized bool
	balance     model.Balance
	history     []model.TransferRecord
	timers      map[string]*time.Timer
	closed      bool

	events chan Event
}

type SimulatedOptions struct {
	// Identity namespaces the persisted state.
	Identity string
	// ConfirmDelay is the simulated time to finality.
	ConfirmDelay time.Duration
	// InitialBalance optionally seeds a demo balance on first Init.
	InitialBalance *model.Amount
}

func NewSimulated(kv storage.KV, opts SimulatedOptions) *Simulated {
	delay := opts.ConfirmDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	s := &Simulated{
		identity:     strings.ToLower(opts.Identity),
		confirmDelay: delay,
		kv:           storage.Namespace(kv, "ledger"),
		balance:      model.ZeroBalance(),
		timers:       make(map[string]*time.Timer),
		events:       make(chan Event, 64),
	}
	if opts.InitialBalance != nil {
		s.balance.Current = opts.InitialBalance.Clone()
	}
	return s
}

type persistedState struct {
	Balance model.Balance          `json:"balance"`
	History []model.TransferRecord `json:"history"`
}

func (s *Simulated) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.kv.Get(ctx, s.identity)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("load ledger state: %w", err)
	}
	if data != nil {
		var st persistedState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decode ledger state: %w", err)
		}
		s.balance = st.Balance
		s.history = st.History
	}
	s.initialized = true
	return nil
}

func (s *Simulated) Fund(ctx context.Context, amount *model.Amount) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	if amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	s.balance.Current.Add(amount)
	if err := s.persist(ctx); err != nil {
		return "", err
	}
	ref := "0xfund_" + uuid.NewString()
	log.Info("funded account",
		zap.String("identity", s.identity),
		zap.String("amount", amount.String()))
	return ref, nil
}

func (s *Simulated) Transfer(ctx context.Context, recipient string, amount *model.Amount, payloadRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	if amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	if amount.Cmp(s.balance.Current) > 0 {
		return "", ErrInsufficientBalance
	}

	rec := model.TransferRecord{
		ID:         "transfer-" + uuid.NewString(),
		Recipient:  recipient,
		Amount:     amount.Clone(),
		PayloadRef: payloadRef,
		Status:     model.TransferPending,
		TxRef:      "0xmock_tx_" + uuid.NewString(),
		CreatedAt:  time.Now(),
	}

	s.balance.Current.Sub(amount)
	s.balance.Pending.Add(amount)
	s.history = append(s.history, rec)
	if err := s.persist(ctx); err != nil {
		// Roll the accounting back so a failed submit leaves no trace.
		s.balance.Current.Add(amount)
		s.balance.Pending.Sub(amount)
		s.history = s.history[:len(s.history)-1]
		return "", err
	}

	s.schedule(rec)
	log.Info("transfer submitted",
		zap.String("transfer_id", rec.ID),
		zap.String("recipient", recipient),
		zap.String("amount", amount.String()))
	return rec.TxRef, nil
}

func (s *Simulated) Rollover(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	if s.balance.Pending.Sign() == 0 {
		return "", ErrNoPendingBalance
	}
	claimed := s.balance.Pending.Clone()
	s.balance.Current.Add(claimed)
	s.balance.Pending = model.NewAmount(0)
	if err := s.persist(ctx); err != nil {
		return "", err
	}
	log.Info("rollover complete",
		zap.String("identity", s.identity),
		zap.String("claimed", claimed.String()))
	return "0xrollover_" + uuid.NewString(), nil
}

func (s *Simulated) Balance() model.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance.Clone()
}

func (s *Simulated) History() []model.TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TransferRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Simulated) Events() <-chan Event {
	return s.events
}

// Close cancels outstanding confirmation timers and closes the events
// channel. Transfers still pending at close stay pending.
func (s *Simulated) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	close(s.events)
}

// schedule arms the pick-up and confirmation timers. Caller holds mu.
func (s *Simulated) schedule(rec model.TransferRecord) {
	id, txRef := rec.ID, rec.TxRef
	s.timers[id+":pool"] = time.AfterFunc(s.confirmDelay/2, func() {
		s.emit(Event{TransferID: id, TxRef: txRef, Kind: EventPickedUp})
	})
	s.timers[id] = time.AfterFunc(s.confirmDelay, func() {
		s.confirm(id)
	})
}

// confirm finalizes a pending transfer. Idempotent: confirming an already
// confirmed or deleted transfer is a no-op, since confirmation is
// fire-and-forget background work that may race local changes.
func (s *Simulated) confirm(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var rec *model.TransferRecord
	for i := range s.history {
		if s.history[i].ID == id {
			rec = &s.history[i]
			break
		}
	}
	if rec == nil || rec.Status != model.TransferPending {
		s.mu.Unlock()
		return
	}
	rec.Status = model.TransferConfirmed
	// A rollover may have claimed the pending balance already; never let
	// pending go negative.
	if s.balance.Pending.Cmp(rec.Amount) >= 0 {
		s.balance.Pending.Sub(rec.Amount)
	} else {
		s.balance.Pending = model.NewAmount(0)
	}
	delete(s.timers, id)
	txRef := rec.TxRef
	if err := s.persist(context.Background()); err != nil {
		log.Error("persist after confirmation failed", zap.Error(err))
	}
	s.mu.Unlock()

	s.emit(Event{TransferID: id, TxRef: txRef, Kind: EventConfirmed})
	log.Debug("transfer confirmed", zap.String("transfer_id", id))
}

// emit sends under mu so Close cannot close the channel between the closed
// check and the send.
func (s *Simulated) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warn("ledger event dropped, consumer too slow",
			zap.String("transfer_id", ev.TransferID))
	}
}

// persist writes balance and history. Caller holds mu.
func (s *Simulated) persist(ctx context.Context) error {
	data, err := json.Marshal(persistedState{Balance: s.balance, History: s.history})
	if err != nil {
		return fmt.Errorf("encode ledger state: %w", err)
	}
	if err := s.kv.Set(ctx, s.identity, data); err != nil {
		return fmt.Errorf("persist ledger state: %w", err)
	}
	return nil
}
