package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/directorio/hub/internal/datatypes"
	"github.com/directorio/hub/internal/observability"
)

// Defaults for the event channel.
const (
	DefaultEventBufferSize = 1024
	DefaultEventTimeout    = 30 * time.Second
)

// Event is a business lifecycle change delivered to the registered providers.
type Event struct {
	ID         uuid.UUID           // Unique event id (UUID v7, time-ordered)
	Type       datatypes.EventType // Lifecycle operation
	BusinessID uuid.UUID
	Timestamp  int64 // Unix timestamp
}

// MessagePublisher publishes business lifecycle events.
type MessagePublisher interface {
	PublishEvent(ctx context.Context, eventType datatypes.EventType, businessID uuid.UUID)
}

// eventPublisher is the internal interface for providers that receive a full Event.
type eventPublisher interface {
	PublishEvent(ctx context.Context, event Event)
}

// MessagePublisherManager fans lifecycle events out to the registered providers from a single
// background worker. Publishing never blocks: when the buffer is full the event is dropped.
type MessagePublisherManager struct {
	eventChan chan Event
	providers []eventPublisher
	timeout   time.Duration
	metrics   observability.EventMetrics
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMessagePublisherManager creates a manager and starts its worker.
// Non-positive bufferSize or timeout use the defaults; metrics may be nil.
func NewMessagePublisherManager(bufferSize int, timeout time.Duration, metrics observability.EventMetrics) *MessagePublisherManager {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	if timeout <= 0 {
		timeout = DefaultEventTimeout
	}

	m := &MessagePublisherManager{
		eventChan: make(chan Event, bufferSize),
		providers: make([]eventPublisher, 0),
		timeout:   timeout,
		metrics:   metrics,
	}

	m.wg.Add(1)

	go m.startWorker()

	return m
}

// RegisterProvider registers a provider (indexing listener, job enqueuer).
// Must only be called during startup, before any events are published.
func (m *MessagePublisherManager) RegisterProvider(provider eventPublisher) {
	m.providers = append(m.providers, provider)
}

// PublishEvent queues a lifecycle event for businessID. It never blocks: when the channel is
// full the event is dropped, counted and logged, and the index entry stays stale until
// `indexctl backfill` reconciles it.
func (m *MessagePublisherManager) PublishEvent(ctx context.Context, eventType datatypes.EventType, businessID uuid.UUID) {
	event := Event{
		ID:         uuid.Must(uuid.NewV7()),
		Type:       eventType,
		BusinessID: businessID,
		Timestamp:  time.Now().Unix(),
	}

	select {
	case m.eventChan <- event:
		if m.metrics != nil {
			m.metrics.SetChannelDepth(len(m.eventChan))
		}

		slog.DebugContext(ctx, "events: published to channel",
			"event_id", event.ID, "event_type", event.Type.String(), "business_id", businessID)
	default:
		if m.metrics != nil {
			m.metrics.RecordEventDiscarded(ctx, event.Type.String())
		}

		slog.WarnContext(ctx, "events: channel full, event dropped",
			"event_id", event.ID, "event_type", event.Type.String(), "business_id", businessID)
	}
}

// startWorker reads events until the channel is closed and hands each one to every provider.
func (m *MessagePublisherManager) startWorker() {
	defer m.wg.Done()

	for event := range m.eventChan {
		if m.metrics != nil {
			m.metrics.SetChannelDepth(len(m.eventChan))
		}

		// One timeout per event so a stuck provider cannot freeze the worker.
		ctx, cancel := context.WithTimeout(observability.WithEventID(context.Background(), event.ID), m.timeout)
		start := time.Now()

		for _, provider := range m.providers {
			m.deliver(ctx, provider, event)
		}

		cancel()

		if m.metrics != nil {
			m.metrics.RecordFanOutDuration(context.Background(), time.Since(start), event.Type.String())
		}
	}
}

func (m *MessagePublisherManager) deliver(ctx context.Context, provider eventPublisher, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "events: provider panicked",
				"event_type", event.Type.String(), "panic_value", r)
		}
	}()

	provider.PublishEvent(ctx, event)
}

// Shutdown stops accepting work and waits for the buffered events to drain.
// Events published after Shutdown panic, so stop the publishers first.
func (m *MessagePublisherManager) Shutdown() {
	m.closeOnce.Do(func() { close(m.eventChan) })
	m.wg.Wait()
}
