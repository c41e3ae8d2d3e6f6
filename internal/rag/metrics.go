package rag

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsrag/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/newsrag/internal/rag"

// queryMetrics records query throughput and latency through OpenTelemetry.
// Instruments that fail to register are left nil and skipped.
type queryMetrics struct {
	meter        metric.Meter
	logger       *logging.Logger
	queriesTotal metric.Int64Counter
	queryDur     metric.Float64Histogram
	docsReturned metric.Int64Histogram
}

func newQueryMetrics(meter metric.Meter, logger *logging.Logger) *queryMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &queryMetrics{meter: meter, logger: logger}
	m.init()
	return m
}

func (m *queryMetrics) init() {
	ctx := context.Background()
	var err error

	m.queriesTotal, err = m.meter.Int64Counter(
		"newsrag.rag.queries_total",
		metric.WithDescription("User queries answered by the orchestrator, labeled by result (success, retrieval_error, prompt_error, generation_error)."),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create queries counter", zap.Error(err))
	}

	m.queryDur, err = m.meter.Float64Histogram(
		"newsrag.rag.query_duration_seconds",
		metric.WithDescription("End-to-end query duration in seconds, retrieval plus generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create query duration histogram", zap.Error(err))
	}

	m.docsReturned, err = m.meter.Int64Histogram(
		"newsrag.rag.relevant_docs",
		metric.WithDescription("Documents placed into the prompt context per query."),
		metric.WithUnit("{document}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8, 13, 20),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create relevant docs histogram", zap.Error(err))
	}
}

func (m *queryMetrics) record(ctx context.Context, start time.Time, docs int, err error) {
	attrs := metric.WithAttributes(attribute.String("result", resultLabel(err)))
	if m.queriesTotal != nil {
		m.queriesTotal.Add(ctx, 1, attrs)
	}
	if m.queryDur != nil {
		m.queryDur.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if err == nil && m.docsReturned != nil {
		m.docsReturned.Record(ctx, int64(docs))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRetrieval):
		return "retrieval_error"
	case errors.Is(err, ErrPrompt):
		return "prompt_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	default:
		return "error"
	}
}
