package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IndexingMetrics records indexer outcomes, vector projection writes and index job failures.
type IndexingMetrics interface {
	RecordIndexOutcome(ctx context.Context, outcome string, duration time.Duration)
	RecordProjectionWrite(ctx context.Context, success bool)
	RecordJobFailure(ctx context.Context, kind string, panicked bool)
}

// indexingMetrics implements IndexingMetrics.
type indexingMetrics struct {
	outcomes         metric.Int64Counter
	duration         metric.Float64Histogram
	projectionWrites metric.Int64Counter
	jobFailures      metric.Int64Counter
}

// NewIndexingMetrics creates IndexingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewIndexingMetrics(meter metric.Meter) (IndexingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	outcomes, err := meter.Int64Counter(
		MetricNameIndexOutcomes,
		metric.WithDescription("Total index operations by outcome (indexed, unchanged, skipped, removed, failed)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create index outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameIndexDuration,
		metric.WithDescription("Index operation duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create index duration histogram: %w", err)
	}

	projectionWrites, err := meter.Int64Counter(
		MetricNameProjectionWrites,
		metric.WithDescription("Total vector projection writes by success"),
	)
	if err != nil {
		return nil, fmt.Errorf("create projection writes counter: %w", err)
	}

	jobFailures, err := meter.Int64Counter(
		MetricNameJobFailures,
		metric.WithDescription("Total failed or panicked queue jobs by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("create job failures counter: %w", err)
	}

	return &indexingMetrics{
		outcomes:         outcomes,
		duration:         duration,
		projectionWrites: projectionWrites,
		jobFailures:      jobFailures,
	}, nil
}

func (m *indexingMetrics) RecordIndexOutcome(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedIndexOutcomes)))
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *indexingMetrics) RecordProjectionWrite(ctx context.Context, success bool) {
	m.projectionWrites.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrSuccess, success)))
}

func (m *indexingMetrics) RecordJobFailure(ctx context.Context, kind string, panicked bool) {
	m.jobFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrJobKind, NormalizeReason(kind, AllowedJobKinds)),
		attribute.Bool(AttrPanicked, panicked),
	))
}
