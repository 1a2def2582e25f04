package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidReceiptHandle is returned when a receipt handle does not belong to
// the latest delivery of a live message.
var ErrInvalidReceiptHandle = errors.New("queue: invalid receipt handle")

type memoryMessage struct {
	id             string
	body           string
	receipt        string
	invisibleUntil time.Time
}

// MemoryQueue is an in-process Queue with SQS-like visibility semantics. It
// backs tests and single-process local runs.
type MemoryQueue struct {
	mu       sync.Mutex
	now      func() time.Time
	order    []string
	messages map[string]*memoryMessage
	receipts map[string]string // receipt handle -> message id
	deleted  map[string]bool
	notify   chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		now:      time.Now,
		messages: make(map[string]*memoryMessage),
		receipts: make(map[string]string),
		deleted:  make(map[string]bool),
		notify:   make(chan struct{}),
	}
}

// WithClock replaces the clock used for visibility deadlines.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
	return q
}

func (q *MemoryQueue) Enqueue(ctx context.Context, body string) error {
	_, err := q.EnqueueWithID(ctx, body)
	return err
}

// EnqueueWithID enqueues body and returns the assigned message id.
func (q *MemoryQueue) EnqueueWithID(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.Lock()
	id := uuid.NewString()
	q.messages[id] = &memoryMessage{id: id, body: body}
	q.order = append(q.order, id)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()

	return id, nil
}

func (q *MemoryQueue) ReceiveBatch(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	max := opts.MaxMessages
	if max <= 0 {
		max = DefaultMaxMessages
	}

	var deadline <-chan time.Time
	if opts.WaitTime > 0 {
		timer := time.NewTimer(opts.WaitTime)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		msgs := q.takeVisible(max, opts.Visibility)
		notify := q.notify
		q.mu.Unlock()

		if len(msgs) > 0 || deadline == nil {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-notify:
		}
	}
}

// takeVisible must be called with q.mu held.
func (q *MemoryQueue) takeVisible(max int, visibility time.Duration) []Message {
	now := q.now()
	var out []Message
	for _, id := range q.order {
		if len(out) == max {
			break
		}
		m := q.messages[id]
		if m == nil || now.Before(m.invisibleUntil) {
			continue
		}
		if m.receipt != "" {
			delete(q.receipts, m.receipt)
		}
		m.receipt = uuid.NewString()
		m.invisibleUntil = now.Add(visibility)
		q.receipts[m.receipt] = id
		out = append(out, Message{ID: m.id, Body: m.body, ReceiptHandle: m.receipt})
	}
	return out
}

func (q *MemoryQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.receipts[receiptHandle]
	if !ok {
		return ErrInvalidReceiptHandle
	}
	if q.deleted[id] {
		return nil
	}

	delete(q.messages, id)
	q.deleted[id] = true
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of messages not yet deleted, visible or in flight.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
