package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RetrievalMetrics records search volume, latency and accelerated backend failures.
type RetrievalMetrics interface {
	RecordSearch(ctx context.Context, source string, duration time.Duration, results int)
	RecordAcceleratedFailure(ctx context.Context, reason string)
}

// retrievalMetrics implements RetrievalMetrics.
type retrievalMetrics struct {
	searches metric.Int64Counter
	duration metric.Float64Histogram
	results  metric.Int64Histogram
	failures metric.Int64Counter
}

// NewRetrievalMetrics creates RetrievalMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRetrievalMetrics(meter metric.Meter) (RetrievalMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	searches, err := meter.Int64Counter(
		MetricNameSearches,
		metric.WithDescription("Total searches by backend source (accelerated, fallback)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("Search duration including query embedding (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	results, err := meter.Int64Histogram(
		MetricNameSearchResults,
		metric.WithDescription("Number of matches returned per search"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25),
	)
	if err != nil {
		return nil, fmt.Errorf("create search results histogram: %w", err)
	}

	failures, err := meter.Int64Counter(
		MetricNameAcceleratedFailures,
		metric.WithDescription("Accelerated vector backend failures by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create accelerated failures counter: %w", err)
	}

	return &retrievalMetrics{
		searches: searches,
		duration: duration,
		results:  results,
		failures: failures,
	}, nil
}

func (m *retrievalMetrics) RecordSearch(ctx context.Context, source string, duration time.Duration, results int) {
	attrs := metric.WithAttributes(attribute.String(AttrSource, NormalizeReason(source, AllowedSearchSources)))
	m.searches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	m.results.Record(ctx, int64(results), attrs)
}

func (m *retrievalMetrics) RecordAcceleratedFailure(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedAcceleratedFailureReasons)
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
