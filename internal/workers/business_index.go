// Package workers provides River job workers.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/directorio/hub/internal/observability"
	"github.com/directorio/hub/internal/service"
)

const businessIndexTimeout = 60 * time.Second

// businessIndexer is the minimal interface needed by the worker.
type businessIndexer interface {
	Upsert(ctx context.Context, businessID uuid.UUID) (service.IndexOutcome, error)
}

// BusinessIndexWorker reconciles the index entry of one business with its current state.
type BusinessIndexWorker struct {
	river.WorkerDefaults[service.IndexBusinessArgs]

	indexer     businessIndexer
	rateLimiter *rate.Limiter
}

// NewBusinessIndexWorker creates the worker. rateLimiter may be nil (no throttling).
func NewBusinessIndexWorker(indexer businessIndexer, rateLimiter *rate.Limiter) *BusinessIndexWorker {
	return &BusinessIndexWorker{indexer: indexer, rateLimiter: rateLimiter}
}

// Timeout limits how long a single index job can run.
func (w *BusinessIndexWorker) Timeout(*river.Job[service.IndexBusinessArgs]) time.Duration {
	return businessIndexTimeout
}

// Work runs Upsert, which also removes businesses that are gone, unverified or soft-deleted.
// Storage errors cancel the job; the failure is logged and left for indexctl backfill.
func (w *BusinessIndexWorker) Work(ctx context.Context, job *river.Job[service.IndexBusinessArgs]) error {
	businessID := job.Args.BusinessID
	ctx = observability.WithJobID(ctx, job.ID)

	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("index job rate limit: %w", err)
		}
	}

	outcome, err := w.indexer.Upsert(ctx, businessID)
	if err != nil {
		slog.ErrorContext(ctx, "index job: upsert failed",
			"business_id", businessID,
			"attempt", job.Attempt,
			"error", err,
		)

		return river.JobCancel(fmt.Errorf("index business %s: %w", businessID, err))
	}

	slog.DebugContext(ctx, "index job: done", "business_id", businessID, "outcome", string(outcome))

	return nil
}
