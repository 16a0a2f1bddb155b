package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// IndexJobProvider implements eventPublisher by enqueueing one River job per lifecycle event.
type IndexJobProvider struct {
	inserter JobInserter
}

// NewIndexJobProvider creates a provider that enqueues index_business jobs.
func NewIndexJobProvider(inserter JobInserter) *IndexJobProvider {
	return &IndexJobProvider{inserter: inserter}
}

// PublishEvent enqueues a reconcile job for the event's business. Failures are logged.
func (p *IndexJobProvider) PublishEvent(ctx context.Context, event Event) {
	if _, err := p.Enqueue(ctx, event.BusinessID); err != nil {
		slog.ErrorContext(ctx, "indexing: enqueue failed", "business_id", event.BusinessID, "error", err)

		return
	}

	slog.DebugContext(ctx, "indexing: job enqueued", "business_id", event.BusinessID)
}

// Enqueue inserts a reconcile job for businessID. It has the BackfillFunc shape so a backfill can
// run through the queue.
func (p *IndexJobProvider) Enqueue(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error) {
	if _, err := p.inserter.Insert(ctx, IndexBusinessArgs{BusinessID: businessID}, nil); err != nil {
		return OutcomeFailed, fmt.Errorf("enqueue index job %s: %w", businessID, err)
	}

	return OutcomeQueued, nil
}
