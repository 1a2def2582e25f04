package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"email-ingest/pkg/metrics"
	"email-ingest/pkg/otel"
	"email-ingest/pkg/queue"
)

const pollInterval = 200 * time.Millisecond

// Queue implements queue.Queue on a RabbitMQ classic queue.
//
// RabbitMQ has no per-message visibility timeout, so one is emulated: a
// delivery not acked within the visibility window is nacked with requeue on
// the next receive, after which its old receipt handle is no longer valid.
// Message ids are assigned at publish time and survive redelivery.
type Queue struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	name    string
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[uint64]time.Time // delivery tag -> visibility deadline
	now      func() time.Time
}

func NewQueue(url, name string, logger *zap.Logger) (*Queue, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := DeclareQueue(ch, name); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger.Info("RabbitMQ queue initialized", zap.String("queue", name))

	return &Queue{
		conn:     conn,
		channel:  ch,
		name:     name,
		logger:   logger,
		inflight: make(map[uint64]time.Time),
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.channel != nil {
		_ = q.channel.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// IsConnected checks if the connection is still alive
func (q *Queue) IsConnected() bool {
	return q.conn != nil && q.channel != nil && !q.conn.IsClosed()
}

// Enqueue publishes body as a persistent message and waits for the broker confirm.
func (q *Queue) Enqueue(ctx context.Context, body string) (err error) {
	ctx, span := otel.QueueSpan(ctx, "rabbitmq", "send", q.name)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("send", err, time.Since(start)) }()

	q.mu.Lock()
	confirm, err := q.channel.PublishWithDeferredConfirmWithContext(ctx,
		"",
		q.name,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         []byte(body),
			DeliveryMode: amqp091.Persistent,
		},
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq publish confirm: %w", err)
	}
	if !acked {
		return errors.New("rabbitmq publish: broker nacked message")
	}
	return nil
}

func (q *Queue) ReceiveBatch(ctx context.Context, opts queue.ReceiveOptions) (msgs []queue.Message, err error) {
	ctx, span := otel.QueueSpan(ctx, "rabbitmq", "receive", q.name)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("receive", err, time.Since(start)) }()

	max := opts.MaxMessages
	if max <= 0 {
		max = queue.DefaultMaxMessages
	}
	deadline := time.Now().Add(opts.WaitTime)

	for {
		batch, err := q.getAvailable(max, opts.Visibility)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 || !time.Now().Before(deadline) {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (q *Queue) getAvailable(max int, visibility time.Duration) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.requeueExpiredLocked()

	var out []queue.Message
	for len(out) < max {
		d, ok, err := q.channel.Get(q.name, false)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq get: %w", err)
		}
		if !ok {
			break
		}
		id := d.MessageId
		if id == "" {
			// published by a foreign producer; fall back to a per-delivery id
			id = uuid.NewString()
		}
		q.inflight[d.DeliveryTag] = q.now().Add(visibility)
		out = append(out, queue.Message{
			ID:            id,
			Body:          string(d.Body),
			ReceiptHandle: strconv.FormatUint(d.DeliveryTag, 10),
		})
	}
	return out, nil
}

func (q *Queue) requeueExpiredLocked() {
	now := q.now()
	for tag, until := range q.inflight {
		if now.Before(until) {
			continue
		}
		if err := q.channel.Nack(tag, false, true); err != nil {
			q.logger.Warn("Failed to requeue expired delivery",
				zap.String("queue", q.name),
				zap.Uint64("delivery_tag", tag),
				zap.Error(err),
			)
		}
		delete(q.inflight, tag)
	}
}

// Delete acks the delivery. Unknown or expired handles are a no-op: the
// message was either already deleted or has been handed back to the broker.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) (err error) {
	_, span := otel.QueueSpan(ctx, "rabbitmq", "delete", q.name)
	defer span.End()
	start := time.Now()
	defer func() { metrics.RecordQueueOperation("delete", err, time.Since(start)) }()

	tag, err := strconv.ParseUint(receiptHandle, 10, 64)
	if err != nil {
		return fmt.Errorf("rabbitmq delete: invalid receipt handle %q: %w", receiptHandle, queue.ErrInvalidReceiptHandle)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[tag]; !ok {
		return nil
	}
	delete(q.inflight, tag)

	if err := q.channel.Ack(tag, false); err != nil {
		return fmt.Errorf("rabbitmq ack: %w", err)
	}
	return nil
}
