package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Enqueuer accepts work for asynchronous processing and returns the message id.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers     int           // number of workers
	RetryLimit  int           // attempts after the first failure before dead-lettering
	RetryDelay  time.Duration // delay before a failed message is re-queued
	RetryPoll   time.Duration // how often due retries are moved back to the queue
	PollTimeout time.Duration // BRPOP block time; go-redis rounds below one second up
}

func (c *QueueConfig) withDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.RetryPoll <= 0 {
		c.RetryPoll = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Stats reports queue depths.
type Stats struct {
	Pending    int64 `json:"pending"`
	Retrying   int64 `json:"retrying"`
	DeadLetter int64 `json:"dead_letter"`
}

// DecodePayload unmarshals a message payload into T.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
