package queue

import (
	"context"
	"time"
)

// Fixed receive parameters of the ingestion worker.
const (
	DefaultMaxMessages = 10
	DefaultWaitTime    = 20 * time.Second
	DefaultVisibility  = 60 * time.Second
)

// Message is one delivery of a queued body. ID is assigned at enqueue time and
// is stable across redeliveries; ReceiptHandle identifies this delivery only.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// ReceiveOptions controls a single long-poll receive.
type ReceiveOptions struct {
	MaxMessages int
	WaitTime    time.Duration
	Visibility  time.Duration
}

// DefaultReceiveOptions returns the worker's fixed receive parameters.
func DefaultReceiveOptions() ReceiveOptions {
	return ReceiveOptions{
		MaxMessages: DefaultMaxMessages,
		WaitTime:    DefaultWaitTime,
		Visibility:  DefaultVisibility,
	}
}

// Producer enqueues message bodies.
type Producer interface {
	Enqueue(ctx context.Context, body string) error
}

// Consumer receives and acknowledges messages.
type Consumer interface {
	ReceiveBatch(ctx context.Context, opts ReceiveOptions) ([]Message, error)
	// Delete acknowledges a delivery. Deleting an already-deleted message is not an error.
	Delete(ctx context.Context, receiptHandle string) error
}

// Queue is both ends of a queue.
type Queue interface {
	Producer
	Consumer
}

// Pinger is implemented by backends that can report connectivity for readiness probes.
type Pinger interface {
	IsConnected() bool
}
