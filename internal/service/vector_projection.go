package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/directorio/hub/internal/observability"
)

// ProjectionState is the availability of the accelerated vector index.
type ProjectionState int32

// Projection states. Unknown means not probed yet.
const (
	ProjectionUnknown ProjectionState = iota
	ProjectionAvailable
	ProjectionUnavailable
)

// String returns the state name used in logs and the probe endpoint.
func (s ProjectionState) String() string {
	switch s {
	case ProjectionAvailable:
		return "available"
	case ProjectionUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

const (
	projectionComponent = "vector_projection"
	probeTimeout        = 5 * time.Second
)

// VectorProjectionSync mirrors embedding vectors into the accelerated index on a best-effort basis.
// Availability is probed lazily once and cached; a failed write degrades it to unavailable for the
// rest of the process lifetime. Only Reprobe resets it.
type VectorProjectionSync struct {
	store   VectorProjectionStore
	state   atomic.Int32
	probeMu sync.Mutex

	dependencies observability.DependencyMetrics
	indexing     observability.IndexingMetrics
	retrieval    observability.RetrievalMetrics
	logger       *slog.Logger
}

// VectorProjectionSyncParams configures a VectorProjectionSync. Metrics may be nil.
type VectorProjectionSyncParams struct {
	Store        VectorProjectionStore
	Dependencies observability.DependencyMetrics
	Indexing     observability.IndexingMetrics
	Retrieval    observability.RetrievalMetrics
	Logger       *slog.Logger
}

// NewVectorProjectionSync creates a VectorProjectionSync in the Unknown state.
// A nil Store makes the index permanently unavailable.
func NewVectorProjectionSync(params VectorProjectionSyncParams) *VectorProjectionSync {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &VectorProjectionSync{
		store:        params.Store,
		dependencies: params.Dependencies,
		indexing:     params.Indexing,
		retrieval:    params.Retrieval,
		logger:       logger,
	}

	if params.Store == nil {
		s.state.Store(int32(ProjectionUnavailable))
	}

	return s
}

// State returns the cached availability without probing.
func (s *VectorProjectionSync) State() ProjectionState {
	return ProjectionState(s.state.Load())
}

// IsAvailable reports whether the accelerated index can be used, probing it on first use.
// Probe errors count as unavailable.
func (s *VectorProjectionSync) IsAvailable(ctx context.Context) bool {
	switch s.State() {
	case ProjectionAvailable:
		return true
	case ProjectionUnavailable:
		return false
	case ProjectionUnknown:
	}

	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	if st := s.State(); st != ProjectionUnknown {
		return st == ProjectionAvailable
	}

	// The probe outcome is cached process-wide; a cancelled request must not decide it.
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	start := time.Now()
	ok, err := s.store.Probe(probeCtx)
	s.observe(ctx, "probe", time.Since(start), err == nil)

	if err != nil || !ok {
		s.state.Store(int32(ProjectionUnavailable))

		if s.retrieval != nil {
			s.retrieval.RecordAcceleratedFailure(ctx, "probe_failed")
		}

		s.logger.WarnContext(ctx, "vector projection: accelerated index unavailable, using in-process ranking",
			"error", err)

		return false
	}

	s.state.Store(int32(ProjectionAvailable))
	s.logger.InfoContext(ctx, "vector projection: accelerated index available")

	return true
}

// Sync writes the projection of one embedding record. It is a no-op while unavailable; a failed
// write is logged and degrades the index to unavailable.
func (s *VectorProjectionSync) Sync(ctx context.Context, embeddingID uuid.UUID, vector []float64) {
	if !s.IsAvailable(ctx) {
		return
	}

	start := time.Now()
	err := s.store.Upsert(ctx, embeddingID, vector)
	s.observe(ctx, "upsert", time.Since(start), err == nil)

	if s.indexing != nil {
		s.indexing.RecordProjectionWrite(ctx, err == nil)
	}

	if err != nil {
		s.degrade(ctx, "write_failed", err, "embedding_id", embeddingID)
	}
}

// Delete removes the projection of one embedding record. It is a no-op while unavailable.
// Failures are logged only; the projection row also goes away with its embedding record.
func (s *VectorProjectionSync) Delete(ctx context.Context, embeddingID uuid.UUID) {
	if !s.IsAvailable(ctx) {
		return
	}

	start := time.Now()
	err := s.store.Delete(ctx, embeddingID)
	s.observe(ctx, "delete", time.Since(start), err == nil)

	if err != nil {
		s.logger.WarnContext(ctx, "vector projection: delete failed",
			"embedding_id", embeddingID, "error", err)
	}
}

// Reprobe resets the state to Unknown so the next IsAvailable probes again.
func (s *VectorProjectionSync) Reprobe(ctx context.Context) {
	previous := ProjectionState(s.state.Swap(int32(ProjectionUnknown)))
	if s.store == nil {
		s.state.Store(int32(ProjectionUnavailable))

		return
	}

	s.logger.InfoContext(ctx, "vector projection: reprobe requested", "previous_state", previous.String())
}

func (s *VectorProjectionSync) degrade(ctx context.Context, reason string, err error, attrs ...any) {
	if !s.state.CompareAndSwap(int32(ProjectionAvailable), int32(ProjectionUnavailable)) {
		return
	}

	if s.retrieval != nil {
		s.retrieval.RecordAcceleratedFailure(ctx, reason)
	}

	s.logger.ErrorContext(ctx, "vector projection: write failed, accelerated index disabled",
		append(attrs, "reason", reason, "error", err)...)
}

func (s *VectorProjectionSync) observe(ctx context.Context, operation string, d time.Duration, success bool) {
	if s.dependencies != nil {
		s.dependencies.RecordCall(ctx, projectionComponent, operation, d, success)
	}
}
