package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

type (
	// Amount is an arbitrary-precision token amount. It marshals as a decimal
	// string so exact values survive JSON round-trips.
	Amount struct {
		big.Int
	}

	TransferStatus string

	// TransferRecord is one entry in the ledger's transfer history. The
	// payload reference points at the encrypted content the transfer carries.
	TransferRecord struct {
		ID         string         `json:"id"`
		Recipient  string         `json:"recipient"`
		Amount     *Amount        `json:"amount"`
		PayloadRef string         `json:"payload_ref"`
		Status     TransferStatus `json:"status"`
		TxRef      string         `json:"tx_ref"`
		CreatedAt  time.Time      `json:"created_at"`
	}

	// Balance is the shielded-pool view of an account: spendable and
	// in-flight amounts. Both are always non-negative.
	Balance struct {
		Current *Amount `json:"current"`
		Pending *Amount `json:"pending"`
	}
)

const (
	TransferPending   TransferStatus = "pending"
	TransferConfirmed TransferStatus = "confirmed"
	TransferFailed    TransferStatus = "failed"
)

func NewAmount(v int64) *Amount {
	a := new(Amount)
	a.SetInt64(v)
	return a
}

func ParseAmount(s string) (*Amount, error) {
	a := new(Amount)
	if _, ok := a.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return a, nil
}

func (a *Amount) Clone() *Amount {
	c := new(Amount)
	c.Set(&a.Int)
	return c
}

// Cmp compares a to b as big integers.
func (a *Amount) Cmp(b *Amount) int {
	return a.Int.Cmp(&b.Int)
}

// Add adds b into a and returns a.
func (a *Amount) Add(b *Amount) *Amount {
	a.Int.Add(&a.Int, &b.Int)
	return a
}

// Sub subtracts b from a and returns a.
func (a *Amount) Sub(b *Amount) *Amount {
	a.Int.Sub(&a.Int, &b.Int)
	return a
}

func (a *Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := a.SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}

// ZeroBalance returns a balance with both parts set to zero.
func ZeroBalance() Balance {
	return Balance{Current: NewAmount(0), Pending: NewAmount(0)}
}

// Clone deep-copies the balance so callers cannot mutate ledger state.
func (b Balance) Clone() Balance {
	return Balance{Current: b.Current.Clone(), Pending: b.Pending.Clone()}
}
