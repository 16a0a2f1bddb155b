package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directorio/hub/internal/datatypes"
)

type collectingProvider struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (p *collectingProvider) PublishEvent(_ context.Context, event Event) {
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
}

func (p *collectingProvider) received() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Event(nil), p.events...)
}

type panickingProvider struct{}

func (panickingProvider) PublishEvent(context.Context, Event) { panic("boom") }

type deadlineProvider struct {
	hadDeadline chan bool
}

func (p deadlineProvider) PublishEvent(ctx context.Context, _ Event) {
	_, ok := ctx.Deadline()
	p.hadDeadline <- ok
}

type recordingEventMetrics struct {
	mu        sync.Mutex
	discarded []string
	messages  map[bool]int
}

func (r *recordingEventMetrics) RecordLifecycleMessage(_ context.Context, _ string, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.messages == nil {
		r.messages = make(map[bool]int)
	}

	r.messages[accepted]++
}

func (r *recordingEventMetrics) RecordEventDiscarded(_ context.Context, eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.discarded = append(r.discarded, eventType)
}

func (r *recordingEventMetrics) RecordFanOutDuration(context.Context, time.Duration, string) {}
func (r *recordingEventMetrics) SetChannelDepth(int)                                         {}
func (r *recordingEventMetrics) SetRiverQueueDepth(int)                                      {}

func TestMessagePublisherManager_FansOutInOrder(t *testing.T) {
	m := NewMessagePublisherManager(16, time.Second, nil)
	a, b := &collectingProvider{}, &collectingProvider{}
	m.RegisterProvider(a)
	m.RegisterProvider(b)

	id := uuid.New()
	m.PublishEvent(context.Background(), datatypes.BusinessCreated, id)
	m.PublishEvent(context.Background(), datatypes.BusinessDeleted, id)
	m.Shutdown()

	for _, p := range []*collectingProvider{a, b} {
		events := p.received()
		require.Len(t, events, 2)
		assert.Equal(t, datatypes.BusinessCreated, events[0].Type)
		assert.Equal(t, datatypes.BusinessDeleted, events[1].Type)
		assert.Equal(t, id, events[0].BusinessID)
		assert.NotEqual(t, uuid.Nil, events[0].ID)
	}
}

func TestMessagePublisherManager_DropsWhenFull(t *testing.T) {
	metrics := &recordingEventMetrics{}
	m := NewMessagePublisherManager(1, time.Second, metrics)

	p := &collectingProvider{block: make(chan struct{})}
	m.RegisterProvider(p)

	// The first event is taken by the worker and blocks in p; the second fills the buffer.
	m.PublishEvent(context.Background(), datatypes.BusinessUpdated, uuid.New())

	require.Eventually(t, func() bool { return len(m.eventChan) == 0 }, time.Second, time.Millisecond)

	m.PublishEvent(context.Background(), datatypes.BusinessUpdated, uuid.New())
	m.PublishEvent(context.Background(), datatypes.BusinessUpdated, uuid.New())

	close(p.block)
	m.Shutdown()

	assert.Len(t, p.received(), 2)
	assert.Equal(t, []string{"business.updated"}, metrics.discarded)
}

func TestMessagePublisherManager_RecoversProviderPanic(t *testing.T) {
	m := NewMessagePublisherManager(4, time.Second, nil)
	after := &collectingProvider{}
	m.RegisterProvider(panickingProvider{})
	m.RegisterProvider(after)

	m.PublishEvent(context.Background(), datatypes.BusinessVerified, uuid.New())
	m.PublishEvent(context.Background(), datatypes.BusinessVerified, uuid.New())
	m.Shutdown()

	assert.Len(t, after.received(), 2)
}

func TestMessagePublisherManager_PerEventTimeout(t *testing.T) {
	m := NewMessagePublisherManager(0, 0, nil)
	p := deadlineProvider{hadDeadline: make(chan bool, 1)}
	m.RegisterProvider(p)

	m.PublishEvent(context.Background(), datatypes.BusinessCreated, uuid.New())
	m.Shutdown()

	assert.True(t, <-p.hadDeadline)
	assert.Equal(t, DefaultEventTimeout, m.timeout)
	assert.Equal(t, DefaultEventBufferSize, cap(m.eventChan))
}

func TestMessagePublisherManager_ShutdownIdempotent(t *testing.T) {
	m := NewMessagePublisherManager(1, time.Second, nil)
	m.Shutdown()
	m.Shutdown()
}
