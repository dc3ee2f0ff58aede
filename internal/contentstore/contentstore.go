// Package contentstore abstracts the content-addressed network that holds
// encrypted message payloads. The core only sees opaque content references.
package contentstore

import (
	"context"
	"errors"
	"time"

	"agentsend/internal/model"
)

var (
	ErrPublishFailed = errors.New("content publish failed")
	ErrNotFound      = errors.New("content not found")
)

type (
	// Payload is the document published per message: the envelope plus the
	// routing fields the recipient needs to decrypt it. Plaintext never
	// appears here.
	Payload struct {
		Sender    string         `json:"sender"`
		Recipient string         `json:"recipient"`
		Envelope  model.Envelope `json:"envelope"`
		Timestamp time.Time      `json:"timestamp"`
	}

	Store interface {
		Publish(ctx context.Context, p Payload) (string, error)
		Fetch(ctx context.Context, ref string) (Payload, error)
	}
)
