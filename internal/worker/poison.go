package worker

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxPoisonBodyBytes bounds the body sample kept per poison event.
const maxPoisonBodyBytes = 4096

// PoisonEvent describes a message dropped because its body is not JSON.
type PoisonEvent struct {
	MessageID string    `json:"message_id"`
	Body      string    `json:"body"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// PoisonRecorder is told about every dropped message. Record must not block
// the loop for long and must not fail it.
type PoisonRecorder interface {
	Record(ctx context.Context, ev PoisonEvent)
}

type LogPoisonRecorder struct {
	logger *zap.Logger
}

func NewLogPoisonRecorder(logger *zap.Logger) *LogPoisonRecorder {
	return &LogPoisonRecorder{logger: logger}
}

func (r *LogPoisonRecorder) Record(_ context.Context, ev PoisonEvent) {
	r.logger.Warn("Poison message recorded",
		zap.String("message_id", ev.MessageID),
		zap.String("reason", ev.Reason),
		zap.Int("body_bytes", len(ev.Body)),
	)
}

// RedisPoisonRecorder pushes events onto a capped Redis list, newest first.
type RedisPoisonRecorder struct {
	rdb    *redis.Client
	key    string
	maxLen int64
	logger *zap.Logger
}

func NewRedisPoisonRecorder(rdb *redis.Client, key string, maxLen int64, logger *zap.Logger) *RedisPoisonRecorder {
	return &RedisPoisonRecorder{rdb: rdb, key: key, maxLen: maxLen, logger: logger}
}

func (r *RedisPoisonRecorder) Record(ctx context.Context, ev PoisonEvent) {
	ev.Body = truncateBody(ev.Body, maxPoisonBodyBytes)
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("Failed to encode poison event", zap.Error(err))
		return
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	if r.maxLen > 0 {
		pipe.LTrim(ctx, r.key, 0, r.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// Redis 不可用时不影响删除
		r.logger.Warn("Failed to record poison event in redis",
			zap.String("message_id", ev.MessageID),
			zap.Error(err),
		)
	}
}

// Recent returns up to n of the newest recorded events.
func (r *RedisPoisonRecorder) Recent(ctx context.Context, n int64) ([]PoisonEvent, error) {
	items, err := r.rdb.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]PoisonEvent, 0, len(items))
	for _, item := range items {
		var ev PoisonEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// truncateBody cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// MultiRecorder fans an event out to several recorders.
type MultiRecorder []PoisonRecorder

func (m MultiRecorder) Record(ctx context.Context, ev PoisonEvent) {
	for _, r := range m {
		r.Record(ctx, ev)
	}
}
