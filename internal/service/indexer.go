package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/directorio/hub/internal/document"
	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
	"github.com/directorio/hub/internal/observability"
)

// IndexOutcome is what an Upsert or Remove did.
type IndexOutcome string

// Index outcomes, also used as metric attribute values.
const (
	OutcomeIndexed   IndexOutcome = "indexed"
	OutcomeUnchanged IndexOutcome = "unchanged"
	OutcomeSkipped   IndexOutcome = "skipped"
	OutcomeRemoved   IndexOutcome = "removed"
	OutcomeFailed    IndexOutcome = "failed"
	// OutcomeQueued means the work was handed to the job queue.
	OutcomeQueued IndexOutcome = "queued"
)

const defaultBackfillBatchSize = 200

// Indexer keeps one embedding record per indexable business.
type Indexer struct {
	businesses BusinessStore
	records    EmbeddingStore
	embedder   Embedder
	projection *VectorProjectionSync
	locks      *KeyedMutex

	batchSize int
	now       func() time.Time
	metrics   observability.IndexingMetrics
	logger    *slog.Logger
}

// IndexerParams configures an Indexer. Metrics may be nil.
type IndexerParams struct {
	Businesses        BusinessStore
	Records           EmbeddingStore
	Embedder          Embedder
	Projection        *VectorProjectionSync
	BackfillBatchSize int
	Metrics           observability.IndexingMetrics
	Logger            *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(params IndexerParams) *Indexer {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batch := params.BackfillBatchSize
	if batch <= 0 {
		batch = defaultBackfillBatchSize
	}

	projection := params.Projection
	if projection == nil {
		projection = NewVectorProjectionSync(VectorProjectionSyncParams{Logger: logger})
	}

	return &Indexer{
		businesses: params.Businesses,
		records:    params.Records,
		embedder:   params.Embedder,
		projection: projection,
		locks:      NewKeyedMutex(),
		batchSize:  batch,
		now:        time.Now,
		metrics:    params.Metrics,
		logger:     logger,
	}
}

// Upsert (re)indexes one business. A business that is absent, unverified or soft-deleted has
// its record removed instead. An unchanged document is a no-op.
func (i *Indexer) Upsert(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "indexer.upsert", attribute.String("business_id", businessID.String()))

	unlock := i.locks.Lock(businessID)
	defer unlock()

	start := time.Now()
	outcome, err := i.upsert(ctx, businessID)
	i.record(ctx, outcome, err, start)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	observability.EndSpan(span, err)

	if err != nil {
		return OutcomeFailed, err
	}

	return outcome, nil
}

// Remove deletes the embedding record of one business and its projection.
// Removing a business without a record is a no-op.
func (i *Indexer) Remove(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "indexer.remove", attribute.String("business_id", businessID.String()))

	unlock := i.locks.Lock(businessID)
	defer unlock()

	start := time.Now()
	outcome, err := i.remove(ctx, businessID)
	i.record(ctx, outcome, err, start)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	observability.EndSpan(span, err)

	if err != nil {
		return OutcomeFailed, err
	}

	return outcome, nil
}

func (i *Indexer) upsert(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error) {
	business, err := i.businesses.GetForIndexing(ctx, businessID)
	if err != nil && !errors.Is(err, huberrors.ErrNotFound) {
		return OutcomeFailed, fmt.Errorf("load business %s: %w", businessID, err)
	}

	if err != nil || !business.Indexable() {
		return i.remove(ctx, businessID)
	}

	content := document.Build(business)
	checksum := document.Checksum(content)

	existing, err := i.records.GetByBusinessID(ctx, businessID)
	if err != nil && !errors.Is(err, huberrors.ErrNotFound) {
		return OutcomeFailed, fmt.Errorf("load embedding record %s: %w", businessID, err)
	}

	if existing.IsCurrent(checksum) {
		return OutcomeUnchanged, nil
	}

	emb := i.embedder.Embed(ctx, content)

	saved, err := i.records.Upsert(ctx, &models.EmbeddingRecord{
		BusinessID:     business.ID,
		OrganizationID: business.OrganizationID,
		Content:        content,
		Embedding:      emb.Vector,
		Dimensions:     len(emb.Vector),
		ProviderName:   emb.Source,
		SourceChecksum: checksum,
		Status:         models.EmbeddingStatusIndexed,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("save embedding record %s: %w", businessID, err)
	}

	i.projection.Sync(ctx, saved.ID, saved.Embedding)

	if err := i.businesses.MarkIndexed(ctx, businessID, i.now().UTC()); err != nil {
		return OutcomeFailed, fmt.Errorf("mark business %s indexed: %w", businessID, err)
	}

	i.logger.DebugContext(ctx, "indexer: business indexed",
		"business_id", businessID, "provider_name", emb.Source, "checksum", checksum)

	return OutcomeIndexed, nil
}

func (i *Indexer) remove(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error) {
	existing, err := i.records.GetByBusinessID(ctx, businessID)
	if errors.Is(err, huberrors.ErrNotFound) {
		return OutcomeSkipped, nil
	}

	if err != nil {
		return OutcomeFailed, fmt.Errorf("load embedding record %s: %w", businessID, err)
	}

	i.projection.Delete(ctx, existing.ID)

	deleted, err := i.records.DeleteByBusinessID(ctx, businessID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("delete embedding record %s: %w", businessID, err)
	}

	if !deleted {
		return OutcomeSkipped, nil
	}

	i.logger.DebugContext(ctx, "indexer: embedding record removed", "business_id", businessID)

	return OutcomeRemoved, nil
}

func (i *Indexer) record(ctx context.Context, outcome IndexOutcome, err error, start time.Time) {
	if err != nil {
		outcome = OutcomeFailed
	}

	if i.metrics != nil {
		i.metrics.RecordIndexOutcome(ctx, string(outcome), time.Since(start))
	}
}

// BackfillStats summarizes a Backfill run.
type BackfillStats struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Queued    int `json:"queued"`
	Failed    int `json:"failed"`
}

// BackfillFunc handles one business id during a backfill, e.g. Indexer.Upsert or a job enqueue.
type BackfillFunc func(ctx context.Context, businessID uuid.UUID) (IndexOutcome, error)

// Backfill walks every indexable business through fn, then removes records whose business no
// longer qualifies. Per-business failures are logged and counted; only listing errors abort.
func (i *Indexer) Backfill(ctx context.Context, fn BackfillFunc) (BackfillStats, error) {
	if fn == nil {
		fn = i.Upsert
	}

	var stats BackfillStats

	after := uuid.Nil

	for {
		ids, err := i.businesses.ListIndexableIDs(ctx, after, i.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list indexable businesses: %w", err)
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			outcome, err := fn(ctx, id)
			if err != nil {
				i.logger.ErrorContext(ctx, "indexer: backfill upsert failed", "business_id", id, "error", err)
			}

			stats.add(outcome, err)
		}

		if len(ids) < i.batchSize {
			break
		}

		after = ids[len(ids)-1]
	}

	orphans, err := i.records.ListOrphanBusinessIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("list orphan embedding records: %w", err)
	}

	for _, id := range orphans {
		outcome, err := i.Remove(ctx, id)
		if err != nil {
			i.logger.ErrorContext(ctx, "indexer: backfill remove failed", "business_id", id, "error", err)
		}

		stats.add(outcome, err)
	}

	i.logger.InfoContext(ctx, "indexer: backfill finished",
		"indexed", stats.Indexed, "unchanged", stats.Unchanged, "removed", stats.Removed, "queued", stats.Queued, "failed", stats.Failed)

	return stats, nil
}

func (s *BackfillStats) add(outcome IndexOutcome, err error) {
	if err != nil {
		s.Failed++

		return
	}

	switch outcome {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeRemoved:
		s.Removed++
	case OutcomeQueued:
		s.Queued++
	case OutcomeSkipped, OutcomeFailed:
	}
}
