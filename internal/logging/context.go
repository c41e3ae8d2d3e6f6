package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type queryCtxKey struct{}
type runCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from ctx: the OpenTelemetry span,
// the id of the user query being answered and the id of the ingestion run.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := QueryIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("query.id", id))
	}
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	return fields
}

// WithQueryID tags ctx with the id of a user query.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryCtxKey{}, id)
}

// QueryIDFromContext returns the query id, or "".
func QueryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryCtxKey{}).(string)
	return id
}

// WithRunID tags ctx with the id of an ingestion run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, id)
}

// RunIDFromContext returns the ingestion run id, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runCtxKey{}).(string)
	return id
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
