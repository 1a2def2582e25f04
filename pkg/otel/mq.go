package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QueueSpan 在队列操作（send / receive / delete）时创建 span
func QueueSpan(ctx context.Context, system, operation, destination string) (context.Context, trace.Span) {
	kind := trace.SpanKindConsumer
	if operation == "send" {
		kind = trace.SpanKindProducer
	}
	return Tracer().Start(ctx, "queue."+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("messaging.system", system),
			attribute.String("messaging.operation.name", operation),
			attribute.String("messaging.destination.name", destination),
		),
	)
}

// MessageSpan 为 worker 处理单条消息创建 span
func MessageSpan(ctx context.Context, messageID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.message.id", messageID)),
	)
}
