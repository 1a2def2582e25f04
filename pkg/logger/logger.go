package logger

import (
	"context"

	"go.uber.org/zap"

	"email-ingest/pkg/trace"
)

var Log *zap.Logger

// NewLogger builds the production zap logger and tags every line with the
// process role ("api" or "worker").
func NewLogger(service string) *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	if service != "" {
		l = l.With(zap.String("service", service))
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if traceID := trace.FromContext(ctx); traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
