package queue

import (
	"context"
	"encoding/json"
	"errors"
)

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type returns the message type the job handles.
	Type() string

	// Handle processes one payload. A returned error schedules a retry
	// unless it wraps ErrPermanent.
	Handle(ctx context.Context, payload json.RawMessage) error
}

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")
