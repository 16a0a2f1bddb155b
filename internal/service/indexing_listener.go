package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/directorio/hub/internal/datatypes"
)

// BusinessIndexer is the indexing surface driven by lifecycle events (Indexer).
type BusinessIndexer interface {
	Upsert(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error)
	Remove(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error)
}

// IndexingListener applies lifecycle events directly in the event worker:
// deleted removes the business, every other operation upserts it.
type IndexingListener struct {
	indexer BusinessIndexer
}

// NewIndexingListener creates an IndexingListener.
func NewIndexingListener(indexer BusinessIndexer) *IndexingListener {
	return &IndexingListener{indexer: indexer}
}

// PublishEvent handles one event. Failures are logged and never returned to the publisher.
func (l *IndexingListener) PublishEvent(ctx context.Context, event Event) {
	var (
		outcome IndexOutcome
		err     error
	)

	switch event.Type {
	case datatypes.BusinessDeleted:
		outcome, err = l.indexer.Remove(ctx, event.BusinessID)
	case datatypes.BusinessCreated, datatypes.BusinessUpdated, datatypes.BusinessVerified:
		outcome, err = l.indexer.Upsert(ctx, event.BusinessID)
	default:
		slog.WarnContext(ctx, "indexing: unknown event type, ignored", "event_type", uint16(event.Type))

		return
	}

	if err != nil {
		slog.ErrorContext(ctx, "indexing: event handling failed",
			"event_type", event.Type.String(),
			"business_id", event.BusinessID,
			"error", err,
		)

		return
	}

	slog.DebugContext(ctx, "indexing: event handled",
		"event_type", event.Type.String(), "business_id", event.BusinessID, "outcome", string(outcome))
}
