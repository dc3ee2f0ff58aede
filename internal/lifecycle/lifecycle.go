// Package lifecycle drives a message from creation through encryption,
// content publication and the carrying transfer, keeping the message store
// and ledger consistent and emitting every status transition for consumers
// such as a UI.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentsend/internal/contentstore"
	"agentsend/internal/cryptographic/cipher"
	"agentsend/internal/directory"
	"agentsend/internal/ledger"
	"agentsend/internal/model"
	"agentsend/internal/store"
	"agentsend/internal/utils/log"
)

// Failure reasons recorded on messages that end up failed.
const (
	ReasonRecipientKeyMissing = "RecipientKeyMissing"
	ReasonEncryptionFailed    = "EncryptionFailed"
	ReasonContentPublish      = "ContentPublishFailed"
	ReasonTransferFailed      = "TransferFailed"
)

type (
	// Transition is emitted on every message status change.
	Transition struct {
		MessageID string
		Status    model.Status
		Reason    string
	}

	Orchestrator struct {
		identity string
		keyPair  model.KeyPair
		carrier  *model.Amount

		dir     *directory.Directory
		content contentstore.Store
		backend ledger.Backend
		store   *store.Store

		mu      sync.Mutex
		byTxRef map[string]string // transfer tx ref -> message id

		transitions chan Transition
		closeOnce   sync.Once
	}

	Options struct {
		Identity string
		KeyPair  model.KeyPair
		// CarrierAmount is the minimal unit attached to each transfer.
		// Defaults to 1.
		CarrierAmount *model.Amount
	}
)

func New(dir *directory.Directory, content contentstore.Store, backend ledger.Backend, st *store.Store, opts Options) *Orchestrator {
	carrier := opts.CarrierAmount
	if carrier == nil {
		carrier = model.NewAmount(1)
	}
	return &Orchestrator{
		identity:    opts.Identity,
		keyPair:     opts.KeyPair,
		carrier:     carrier,
		dir:         dir,
		content:     content,
		backend:     backend,
		store:       st,
		byTxRef:     make(map[string]string),
		transitions: make(chan Transition, 64),
	}
}

// Transitions delivers one event per status change, in order per message.
func (o *Orchestrator) Transitions() <-chan Transition {
	return o.transitions
}

// Send runs a message through encrypt, content publish and transfer
// submission. It returns once the transfer is submitted; confirmation
// arrives through Run. On failure the message keeps every field an earlier
// successful step produced, so a content reference survives a failed
// transfer and permits manual resubmission.
func (o *Orchestrator) Send(ctx context.Context, recipient, plaintext string) (model.Message, error) {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: model.ConversationID(o.identity, recipient),
		Sender:         o.identity,
		Recipient:      recipient,
		Plaintext:      plaintext,
		Status:         model.StatusEncrypting,
		CreatedAt:      time.Now(),
	}
	if err := o.store.Append(ctx, msg); err != nil {
		return model.Message{}, fmt.Errorf("append message: %w", err)
	}
	o.emit(Transition{MessageID: msg.ID, Status: model.StatusEncrypting})

	recipientPub, err := o.dir.Lookup(ctx, recipient)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return o.fail(ctx, msg.ID, ReasonRecipientKeyMissing,
				fmt.Errorf("recipient %s has not initialized encryption: %w", recipient, err))
		}
		return o.fail(ctx, msg.ID, ReasonRecipientKeyMissing, err)
	}

	env, err := cipher.Seal([]byte(plaintext), &recipientPub, &o.keyPair.SecretKey)
	if err != nil {
		return o.fail(ctx, msg.ID, ReasonEncryptionFailed, err)
	}
	if err := o.store.SetEnvelope(ctx, msg.ID, env); err != nil {
		return o.fail(ctx, msg.ID, ReasonEncryptionFailed, err)
	}
	if _, err := o.advance(ctx, msg.ID, model.StatusSending, ""); err != nil {
		return model.Message{}, err
	}

	ref, err := o.content.Publish(ctx, contentstore.Payload{
		Sender:    o.identity,
		Recipient: recipient,
		Envelope:  env,
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		return o.fail(ctx, msg.ID, ReasonContentPublish, err)
	}
	if err := o.store.SetContentRef(ctx, msg.ID, ref); err != nil {
		return o.fail(ctx, msg.ID, ReasonContentPublish, err)
	}

	txRef, err := o.backend.Transfer(ctx, recipient, o.carrier.Clone(), ref)
	if err != nil {
		return o.fail(ctx, msg.ID, ReasonTransferFailed, err)
	}

	o.mu.Lock()
	o.byTxRef[txRef] = msg.ID
	o.mu.Unlock()

	updated, err := o.advance(ctx, msg.ID, model.StatusPending, txRef)
	if errors.Is(err, store.ErrBackwardTransition) {
		// A fast confirmation overtook the pending update; keep the later
		// status.
		updated, err = o.store.Get(msg.ID)
	}
	if err != nil {
		return model.Message{}, err
	}
	log.Info("message submitted",
		zap.String("message_id", msg.ID),
		zap.String("content_ref", ref),
		zap.String("tx_ref", txRef))
	return updated, nil
}

// Receive fetches and decrypts an inbound message payload, appending it to
// the local store. Incoming messages land directly in delivered.
func (o *Orchestrator) Receive(ctx context.Context, rm model.RelayMessage) (model.Message, error) {
	payload, err := o.content.Fetch(ctx, rm.ContentRef)
	if err != nil {
		return model.Message{}, fmt.Errorf("fetch content %s: %w", rm.ContentRef, err)
	}
	senderPub, err := o.dir.Lookup(ctx, payload.Sender)
	if err != nil {
		return model.Message{}, fmt.Errorf("sender key: %w", err)
	}
	plaintext, err := cipher.Open(payload.Envelope, &senderPub, &o.keyPair.SecretKey)
	if err != nil {
		return model.Message{}, err
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: model.ConversationID(payload.Sender, o.identity),
		Sender:         payload.Sender,
		Recipient:      o.identity,
		Plaintext:      string(plaintext),
		Envelope:       &payload.Envelope,
		ContentRef:     rm.ContentRef,
		TransferRef:    rm.TransferRef,
		Status:         model.StatusDelivered,
		CreatedAt:      payload.Timestamp,
	}
	if err := o.store.Append(ctx, msg); err != nil {
		return model.Message{}, err
	}
	o.emit(Transition{MessageID: msg.ID, Status: model.StatusDelivered})
	return msg, nil
}

// MarkDelivered records a counterpart acknowledgement.
func (o *Orchestrator) MarkDelivered(ctx context.Context, messageID string) error {
	_, err := o.advance(ctx, messageID, model.StatusDelivered, "")
	return err
}

// Run consumes ledger events and applies them to message state, by message
// id so concurrent in-flight sends never clobber each other. It returns
// when ctx is done or the backend's event channel closes.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.backend.Events():
			if !ok {
				return
			}
			o.apply(ctx, ev)
		}
	}
}

// Close stops emitting transitions. The ledger backend is closed by its
// owner, not here.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.transitions) })
}

func (o *Orchestrator) apply(ctx context.Context, ev ledger.Event) {
	o.mu.Lock()
	msgID, ok := o.byTxRef[ev.TxRef]
	o.mu.Unlock()
	if !ok {
		// Transfer not carrying one of our messages (e.g. manual rollover).
		return
	}

	var status model.Status
	switch ev.Kind {
	case ledger.EventPickedUp:
		status = model.StatusInPool
	case ledger.EventConfirmed:
		status = model.StatusConfirmed
	default:
		return
	}

	if _, err := o.advance(ctx, msgID, status, ev.TxRef); err != nil {
		// A locally failed message may still get its confirmation; the
		// store already refused the regression.
		log.Debug("ledger event not applied",
			zap.String("message_id", msgID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// advance serializes the store update and the transition emission so
// observers never see transitions out of order.
func (o *Orchestrator) advance(ctx context.Context, id string, status model.Status, txRef string) (model.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	updated, err := o.store.UpdateStatus(ctx, id, status, txRef)
	if err != nil {
		return model.Message{}, err
	}
	o.emit(Transition{MessageID: id, Status: status})
	return updated, nil
}

func (o *Orchestrator) fail(ctx context.Context, id, reason string, cause error) (model.Message, error) {
	msg, ferr := o.store.Fail(ctx, id, reason)
	if ferr != nil {
		log.Error("failed to record message failure",
			zap.String("message_id", id), zap.Error(ferr))
	} else {
		o.emit(Transition{MessageID: id, Status: model.StatusFailed, Reason: reason})
	}
	log.Error("message lifecycle failed",
		zap.String("message_id", id),
		zap.String("reason", reason),
		zap.Error(cause))
	return msg, cause
}

func (o *Orchestrator) emit(t Transition) {
	select {
	case o.transitions <- t:
	default:
		log.Warn("transition dropped, consumer too slow",
			zap.String("message_id", t.MessageID))
	}
}
