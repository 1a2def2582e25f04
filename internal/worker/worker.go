package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"email-ingest/internal/payload"
	"email-ingest/pkg/metrics"
	"email-ingest/pkg/objectstore"
	"email-ingest/pkg/otel"
	"email-ingest/pkg/queue"
	"email-ingest/pkg/util"
)

const DefaultPollInterval = 1 * time.Second

// Options 轮询参数。零值字段使用默认值。
type Options struct {
	Receive      queue.ReceiveOptions
	PollInterval time.Duration
}

// Result summarises one iteration of the loop.
type Result struct {
	Received int
	Stored   int
	Poison   int
	Failed   int
}

// Worker drains the queue into the object store. It is a single sequential
// loop; messages of one batch are handled one after another.
type Worker struct {
	consumer queue.Consumer
	store    objectstore.Store
	poison   PoisonRecorder
	logger   *zap.Logger
	opts     Options
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

func New(consumer queue.Consumer, store objectstore.Store, logger *zap.Logger, opts Options) *Worker {
	if opts.Receive.MaxMessages <= 0 {
		opts.Receive = queue.DefaultReceiveOptions()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Worker{
		consumer: consumer,
		store:    store,
		poison:   NewLogPoisonRecorder(logger),
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// WithClock 设置生成存储路径用的时钟
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// WithSleep 设置空轮询后的等待函数
func (w *Worker) WithSleep(sleep func(ctx context.Context, d time.Duration)) *Worker {
	w.sleep = sleep
	return w
}

// WithPoisonRecorder 设置毒消息记录器
func (w *Worker) WithPoisonRecorder(r PoisonRecorder) *Worker {
	w.poison = r
	return w
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run polls until ctx is cancelled. Cancellation stops new receives only; a
// batch already received is processed to the end.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting ingestion worker",
		zap.Int("max_messages", w.opts.Receive.MaxMessages),
		zap.Duration("wait_time", w.opts.Receive.WaitTime),
		zap.Duration("visibility", w.opts.Receive.Visibility),
		zap.Duration("poll_interval", w.opts.PollInterval),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Ingestion worker stopped")
			return nil
		}

		res, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.sleep(ctx, w.opts.PollInterval)
			continue
		}
		if res.Received == 0 {
			w.sleep(ctx, w.opts.PollInterval)
		}
	}
}

// RunOnce performs one receive and processes whatever it returned.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	msgs, err := w.consumer.ReceiveBatch(ctx, w.opts.Receive)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to receive messages",
				zap.String("error_type", util.ClassifyError(err)),
				zap.Error(err),
			)
		}
		return Result{}, err
	}

	res := Result{Received: len(msgs)}
	if len(msgs) == 0 {
		metrics.IncrementEmptyPoll()
		return res, nil
	}

	w.logger.Debug("Received batch", zap.Int("count", len(msgs)))

	batchCtx := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		switch w.processMessage(batchCtx, msg) {
		case metrics.OutcomeStored:
			res.Stored++
		case metrics.OutcomePoison:
			res.Poison++
		default:
			res.Failed++
		}
	}
	return res, nil
}

// processMessage returns the metrics outcome of msg.
func (w *Worker) processMessage(ctx context.Context, msg queue.Message) string {
	ctx, span := otel.MessageSpan(ctx, msg.ID)
	defer span.End()

	log := w.logger.With(zap.String("message_id", msg.ID))

	body, err := payload.Compact([]byte(msg.Body))
	if err != nil {
		log.Warn("Dropping poison message", zap.Error(err))
		span.SetAttributes(attribute.String("worker.outcome", metrics.OutcomePoison))
		metrics.IncrementWorkerMessage(metrics.OutcomePoison)

		w.poison.Record(ctx, PoisonEvent{
			MessageID: msg.ID,
			Body:      msg.Body,
			Reason:    err.Error(),
			At:        w.now().UTC(),
		})
		w.delete(ctx, log, msg)
		return metrics.OutcomePoison
	}

	key := payload.StorageKey(w.now(), msg.ID)
	span.SetAttributes(attribute.String("object.key", key))

	if err := w.store.PutObject(ctx, key, body, objectstore.ContentTypeJSON); err != nil {
		log.Error("Failed to store message, leaving it for redelivery",
			zap.String("key", key),
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "put object failed")
		metrics.IncrementWorkerMessage(metrics.OutcomeStoreFailed)
		return metrics.OutcomeStoreFailed
	}

	log.Info("Stored message", zap.String("key", key), zap.Int("bytes", len(body)))
	metrics.IncrementWorkerMessage(metrics.OutcomeStored)
	w.delete(ctx, log, msg)
	return metrics.OutcomeStored
}

// delete 确认消息；失败只记录，消息会在可见性超时后重投
func (w *Worker) delete(ctx context.Context, log *zap.Logger, msg queue.Message) {
	if err := w.consumer.Delete(ctx, msg.ReceiptHandle); err != nil {
		log.Error("Failed to delete message",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		metrics.IncrementWorkerMessage(metrics.OutcomeDeleteFailed)
	}
}
