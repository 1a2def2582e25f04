package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"email-ingest/internal/payload"
	"email-ingest/pkg/logger"
	"email-ingest/pkg/metrics"
	"email-ingest/pkg/queue"
	"email-ingest/pkg/util"
)

// Request is the body of POST /ingest.
type Request struct {
	Token string          `json:"token"`
	Data  json.RawMessage `json:"data"`
}

type Service struct {
	tokens   TokenSource
	producer queue.Producer
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(tokens TokenSource, producer queue.Producer, logger *zap.Logger) *Service {
	return &Service{
		tokens:   tokens,
		producer: producer,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the clock used for the future-timestamp check.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest authenticates the request, validates data and enqueues it as compact
// JSON. Nothing is enqueued unless every check passes.
func (s *Service) Ingest(ctx context.Context, req Request) error {
	log := logger.WithTrace(ctx, s.logger)

	expected, err := s.tokens.ExpectedToken(ctx)
	if err != nil {
		log.Error("Failed to fetch expected token",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		metrics.IncrementIngestRequest("error")
		return &DependencyError{Op: "fetch token", Err: err}
	}

	if req.Token != expected {
		log.Warn("Rejected ingest request with invalid token")
		metrics.IncrementIngestRequest("unauthorized")
		return ErrUnauthorized
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(req.Data, &fields); err != nil || fields == nil {
		log.Warn("Rejected ingest request with non-object data")
		metrics.IncrementIngestRequest("invalid")
		return &ValidationError{Reason: ReasonInvalidRequest, Err: err}
	}

	if _, err := payload.ValidateTimestream(fields, s.now()); err != nil {
		log.Warn("Rejected ingest request", zap.String("reason", err.Error()))
		metrics.IncrementIngestRequest("invalid")
		return &ValidationError{Reason: err.Error(), Err: err}
	}

	body, err := payload.CompactObject(req.Data)
	if err != nil {
		metrics.IncrementIngestRequest("invalid")
		return &ValidationError{Reason: ReasonInvalidRequest, Err: err}
	}

	if err := s.producer.Enqueue(ctx, string(body)); err != nil {
		log.Error("Failed to enqueue payload",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		metrics.IncrementIngestRequest("error")
		return &DependencyError{Op: "enqueue", Err: err}
	}

	log.Info("Payload accepted", zap.Int("bytes", len(body)))
	metrics.IncrementIngestRequest("accepted")
	return nil
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}
