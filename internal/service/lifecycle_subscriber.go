package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/directorio/hub/internal/datatypes"
	"github.com/directorio/hub/internal/observability"
	"github.com/directorio/hub/pkg/natsutil"
)

// LifecycleMessage is the platform bus payload for a business change.
type LifecycleMessage struct {
	BusinessID string `json:"businessId"` //nolint:tagliatelle // platform bus contract
	Operation  string `json:"operation"`
}

// LifecycleSubscriber feeds business lifecycle messages from NATS into a MessagePublisher.
type LifecycleSubscriber struct {
	publisher MessagePublisher
	metrics   observability.EventMetrics
	sub       *nats.Subscription
}

// NewLifecycleSubscriber creates a subscriber. metrics may be nil.
func NewLifecycleSubscriber(publisher MessagePublisher, metrics observability.EventMetrics) *LifecycleSubscriber {
	return &LifecycleSubscriber{publisher: publisher, metrics: metrics}
}

// Start subscribes to subject on nc.
func (s *LifecycleSubscriber) Start(nc *nats.Conn, subject string) error {
	sub, err := natsutil.Subscribe(nc, subject, s.Handle, s.onDecodeError)
	if err != nil {
		return fmt.Errorf("lifecycle subscriber: %w", err)
	}

	s.sub = sub

	slog.Info("lifecycle subscriber: listening", "subject", subject)

	return nil
}

// Handle validates one message and publishes it. Malformed messages are logged and dropped.
func (s *LifecycleSubscriber) Handle(ctx context.Context, msg LifecycleMessage) {
	eventType, err := datatypes.ParseEventType(msg.Operation)
	if err != nil {
		s.reject(ctx, msg, err)

		return
	}

	businessID, err := uuid.Parse(msg.BusinessID)
	if err != nil {
		s.reject(ctx, msg, fmt.Errorf("invalid business id: %w", err))

		return
	}

	if s.metrics != nil {
		s.metrics.RecordLifecycleMessage(ctx, eventType.String(), true)
	}

	s.publisher.PublishEvent(ctx, eventType, businessID)
}

func (s *LifecycleSubscriber) reject(ctx context.Context, msg LifecycleMessage, err error) {
	if s.metrics != nil {
		s.metrics.RecordLifecycleMessage(ctx, msg.Operation, false)
	}

	slog.WarnContext(ctx, "lifecycle subscriber: message dropped",
		"business_id", msg.BusinessID, "operation", msg.Operation, "error", err)
}

func (s *LifecycleSubscriber) onDecodeError(msg *nats.Msg, err error) {
	if s.metrics != nil {
		s.metrics.RecordLifecycleMessage(context.Background(), "", false)
	}

	slog.Warn("lifecycle subscriber: undecodable message dropped", "subject", msg.Subject, "error", err)
}

// Stop drains the subscription so in-flight messages are handled.
func (s *LifecycleSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}

	if err := s.sub.Drain(); err != nil {
		return fmt.Errorf("lifecycle subscriber: drain: %w", err)
	}

	return nil
}
