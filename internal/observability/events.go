package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EventMetrics covers the lifecycle pipeline: bus messages, the publisher channel and the
// River indexing queue.
type EventMetrics interface {
	RecordLifecycleMessage(ctx context.Context, eventType string, accepted bool)
	RecordEventDiscarded(ctx context.Context, eventType string)
	RecordFanOutDuration(ctx context.Context, duration time.Duration, eventType string)
	SetChannelDepth(depth int)
	SetRiverQueueDepth(depth int)
}

type eventMetrics struct {
	lifecycleMessages metric.Int64Counter
	eventsDiscarded   metric.Int64Counter
	fanOutDuration    metric.Float64Histogram

	channelDepth    atomic.Int64
	riverQueueDepth atomic.Int64
}

// NewEventMetrics returns (nil, nil) when meter is nil.
func NewEventMetrics(meter metric.Meter) (EventMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	m := &eventMetrics{}

	var err error

	if m.lifecycleMessages, err = meter.Int64Counter(MetricNameLifecycleMessagesRecv,
		metric.WithDescription("Business lifecycle messages received from the bus, by event type and acceptance"),
	); err != nil {
		return nil, fmt.Errorf("create lifecycle messages counter: %w", err)
	}

	if m.eventsDiscarded, err = meter.Int64Counter(MetricNameEventsDiscarded,
		metric.WithDescription("Lifecycle events dropped because the publisher channel was full"),
	); err != nil {
		return nil, fmt.Errorf("create events discarded counter: %w", err)
	}

	if m.fanOutDuration, err = meter.Float64Histogram(MetricNameFanOutDuration,
		metric.WithDescription("Time to hand one lifecycle event to every registered provider"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create fan-out duration histogram: %w", err)
	}

	channelDepth, err := meter.Int64ObservableGauge(MetricNameEventChannelDepth,
		metric.WithDescription("Lifecycle events waiting in the publisher channel"))
	if err != nil {
		return nil, fmt.Errorf("create channel depth gauge: %w", err)
	}

	riverQueueDepth, err := meter.Int64ObservableGauge(MetricNameRiverQueueDepth,
		metric.WithDescription("Indexing jobs available, retryable or scheduled in River"))
	if err != nil {
		return nil, fmt.Errorf("create river queue depth gauge: %w", err)
	}

	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(channelDepth, m.channelDepth.Load())
		o.ObserveInt64(riverQueueDepth, m.riverQueueDepth.Load())

		return nil
	}, channelDepth, riverQueueDepth); err != nil {
		return nil, fmt.Errorf("register queue depth callback: %w", err)
	}

	return m, nil
}

func eventTypeOption(eventType string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{attribute.String(AttrEventType, NormalizeEventType(eventType))}, extra...)

	return metric.WithAttributes(attrs...)
}

func (m *eventMetrics) RecordLifecycleMessage(ctx context.Context, eventType string, accepted bool) {
	m.lifecycleMessages.Add(ctx, 1, eventTypeOption(eventType, attribute.Bool("accepted", accepted)))
}

func (m *eventMetrics) RecordEventDiscarded(ctx context.Context, eventType string) {
	m.eventsDiscarded.Add(ctx, 1, eventTypeOption(eventType))
}

func (m *eventMetrics) RecordFanOutDuration(ctx context.Context, duration time.Duration, eventType string) {
	m.fanOutDuration.Record(ctx, duration.Seconds(), eventTypeOption(eventType))
}

func (m *eventMetrics) SetChannelDepth(depth int) { m.channelDepth.Store(int64(depth)) }

func (m *eventMetrics) SetRiverQueueDepth(depth int) { m.riverQueueDepth.Store(int64(depth)) }
