package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"agentsend/internal/model"
)

// Chain submits operations to the relay's transfer network over HTTP. The
// relay answers submissions synchronously with a transaction reference;
// confirmations arrive out-of-band, observed here by polling the transfer
// history and diffing statuses.
type Chain struct {
	identity string
	base     string
	client   *http.Client
	poll     time.Duration

	mu          sync.Mutex
	initialized bool
	seen        map[string]model.TransferStatus
	closed      bool

	events chan Event
	stop   chan struct{}
}

type ChainOptions struct {
	Identity string
	// BaseURL is the relay's HTTP root, e.g. "http://localhost:9090".
	BaseURL string
	// PollInterval controls how often the transfer history is checked for
	// confirmations.
	PollInterval time.Duration
}

func NewChain(opts ChainOptions) *Chain {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Chain{
		identity: opts.Identity,
		base:     opts.BaseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		poll:     poll,
		seen:     make(map[string]model.TransferStatus),
		events:   make(chan Event, 64),
		stop:     make(chan struct{}),
	}
}

func (c *Chain) Init(ctx context.Context) error {
	// Prime the status map so pre-existing confirmations are not replayed.
	history, err := c.fetchHistory(ctx)
	if err != nil {
		return fmt.Errorf("init chain ledger: %w", err)
	}
	c.mu.Lock()
	for _, rec := range history {
		c.seen[rec.ID] = rec.Status
	}
	c.initialized = true
	c.mu.Unlock()
	go c.watch()
	return nil
}

func (c *Chain) Fund(ctx context.Context, amount *model.Amount) (string, error) {
	if !c.ready() {
		return "", ErrNotInitialized
	}
	return c.submit(ctx, "/ledger/"+url.PathEscape(c.identity)+"/fund",
		model.FundRequest{Amount: amount})
}

func (c *Chain) Transfer(ctx context.Context, recipient string, amount *model.Amount, payloadRef string) (string, error) {
	if !c.ready() {
		return "", ErrNotInitialized
	}
	return c.submit(ctx, "/ledger/"+url.PathEscape(c.identity)+"/transfer",
		model.TransferRequest{Recipient: recipient, Amount: amount, PayloadRef: payloadRef})
}

func (c *Chain) Rollover(ctx context.Context) (string, error) {
	if !c.ready() {
		return "", ErrNotInitialized
	}
	return c.submit(ctx, "/ledger/"+url.PathEscape(c.identity)+"/rollover", struct{}{})
}

func (c *Chain) Balance() model.Balance {
	bal := model.ZeroBalance()
	resp, err := c.client.Get(c.base + "/ledger/" + url.PathEscape(c.identity) + "/balance")
	if err != nil {
		return bal
	}
	defer resp.Body.Close()
	json.NewDecoder(resp.Body).Decode(&bal)
	return bal
}

func (c *Chain) History() []model.TransferRecord {
	history, err := c.fetchHistory(context.Background())
	if err != nil {
		return nil
	}
	return history
}

func (c *Chain) Events() <-chan Event {
	return c.events
}

func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.stop)
	close(c.events)
}

func (c *Chain) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *Chain) submit(ctx context.Context, path string, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", mapRelayError(resp.StatusCode, string(msg))
	}
	var tx model.TxResponse
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return "", fmt.Errorf("decode response from %s: %w", path, err)
	}
	return tx.TxRef, nil
}

func (c *Chain) fetchHistory(ctx context.Context) ([]model.TransferRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/ledger/"+url.PathEscape(c.identity)+"/transfers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var history []model.TransferRecord
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Chain) watch() {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
		history, err := c.fetchHistory(context.Background())
		if err != nil {
			continue
		}
		for _, rec := range history {
			// The send stays under mu so Close cannot close the channel
			// between the closed check and the send.
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			prev, known := c.seen[rec.ID]
			c.seen[rec.ID] = rec.Status
			if (!known || prev != rec.Status) && rec.Status == model.TransferConfirmed {
				select {
				case c.events <- Event{TransferID: rec.ID, TxRef: rec.TxRef, Kind: EventConfirmed}:
				default:
				}
			}
			c.mu.Unlock()
		}
	}
}

// mapRelayError translates relay error responses back into ledger
// sentinels so callers see the same taxonomy for both backends.
func mapRelayError(status int, body string) error {
	switch {
	case status == http.StatusPaymentRequired:
		return ErrInsufficientBalance
	case status == http.StatusConflict:
		return ErrNoPendingBalance
	case status == http.StatusPreconditionFailed:
		return ErrNotInitialized
	default:
		return fmt.Errorf("relay error %d: %s", status, body)
	}
}
