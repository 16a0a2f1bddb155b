package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DependencyMetrics records one sample per call to an external dependency (remote model,
// vector projection, stores): component, operation, duration and whether it succeeded.
type DependencyMetrics interface {
	RecordCall(ctx context.Context, component, operation string, duration time.Duration, success bool)
}

// dependencyMetrics implements DependencyMetrics.
type dependencyMetrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewDependencyMetrics creates DependencyMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewDependencyMetrics(meter metric.Meter) (DependencyMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	calls, err := meter.Int64Counter(
		MetricNameDependencyCalls,
		metric.WithDescription("Total calls to external dependencies by component, operation and success"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dependency calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameDependencyDuration,
		metric.WithDescription("External dependency call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dependency duration histogram: %w", err)
	}

	return &dependencyMetrics{calls: calls, duration: duration}, nil
}

func (d *dependencyMetrics) RecordCall(ctx context.Context, component, operation string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String(AttrComponent, NormalizeReason(component, AllowedComponents)),
		attribute.String(AttrOperation, NormalizeReason(operation, AllowedOperations)),
		attribute.Bool(AttrSuccess, success),
	)
	d.calls.Add(ctx, 1, attrs)
	d.duration.Record(ctx, duration.Seconds(), attrs)
}
