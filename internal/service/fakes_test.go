package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
)

const testDims = 64

var errStorage = errors.New("connection reset")

// memStore is an in-memory BusinessStore, EmbeddingStore and CandidateStore.
type memStore struct {
	mu         sync.Mutex
	businesses map[uuid.UUID]*models.Business
	records    map[uuid.UUID]*models.EmbeddingRecord
	upserts    int
	deletes    int
	marked     map[uuid.UUID]time.Time

	upsertErr     error
	markErr       error
	getBusinessFn func(uuid.UUID) error
}

func newMemStore() *memStore {
	return &memStore{
		businesses: make(map[uuid.UUID]*models.Business),
		records:    make(map[uuid.UUID]*models.EmbeddingRecord),
		marked:     make(map[uuid.UUID]time.Time),
	}
}

func (s *memStore) putBusiness(b *models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.businesses[b.ID] = &cp
}

func (s *memStore) record(id uuid.UUID) (*models.EmbeddingRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]

	return r, ok
}

func (s *memStore) GetForIndexing(_ context.Context, id uuid.UUID) (*models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getBusinessFn != nil {
		if err := s.getBusinessFn(id); err != nil {
			return nil, err
		}
	}

	b, ok := s.businesses[id]
	if !ok {
		return nil, huberrors.NotFound("business", id)
	}

	cp := *b

	return &cp, nil
}

func (s *memStore) MarkIndexed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markErr != nil {
		return s.markErr
	}

	s.marked[id] = at

	return nil
}

func (s *memStore) ListIndexableIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID

	for id, b := range s.businesses {
		if b.Indexable() && id.String() > after.String() {
			ids = append(ids, id)
		}
	}

	slices.SortFunc(ids, compareUUID)

	if len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

func compareUUID(a, b uuid.UUID) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	default:
		return 0
	}
}

func (s *memStore) GetByBusinessID(_ context.Context, businessID uuid.UUID) (*models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[businessID]
	if !ok {
		return nil, huberrors.NotFound("embedding record", businessID)
	}

	cp := *r

	return &cp, nil
}

func (s *memStore) Upsert(_ context.Context, rec *models.EmbeddingRecord) (*models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return nil, s.upsertErr
	}

	s.upserts++

	cp := *rec
	if existing, ok := s.records[rec.BusinessID]; ok {
		cp.ID = existing.ID
	} else {
		cp.ID = uuid.New()
	}

	s.records[rec.BusinessID] = &cp

	out := cp

	return &out, nil
}

func (s *memStore) DeleteByBusinessID(_ context.Context, businessID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[businessID]; !ok {
		return false, nil
	}

	s.deletes++
	delete(s.records, businessID)

	return true, nil
}

func (s *memStore) ListOrphanBusinessIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID

	for id := range s.records {
		if b, ok := s.businesses[id]; !ok || !b.Indexable() {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (s *memStore) ListCandidates(_ context.Context, filters models.QueryFilters, limit int) ([]models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Candidate

	for id, r := range s.records {
		b, ok := s.businesses[id]
		if !ok || !b.Indexable() || r.Status != models.EmbeddingStatusIndexed {
			continue
		}

		if filters.OrganizationID != nil && *filters.OrganizationID != b.OrganizationID {
			continue
		}

		out = append(out, models.Candidate{
			Match:     models.Match{BusinessID: b.ID, OrganizationID: b.OrganizationID, Name: b.Name, Slug: b.Slug},
			Embedding: r.Embedding,
		})
	}

	slices.SortFunc(out, func(a, b models.Candidate) int { return compareUUID(a.BusinessID, b.BusinessID) })

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// mockProjectionStore is a VectorProjectionStore with overridable behavior.
type mockProjectionStore struct {
	mu        sync.Mutex
	probes    int
	upserts   map[uuid.UUID][]float64
	deletes   []uuid.UUID
	probeFn   func() (bool, error)
	upsertErr error
	deleteErr error
	nearestFn func(query []float64, filters models.QueryFilters, limit int) ([]models.Match, error)
}

func newMockProjectionStore() *mockProjectionStore {
	return &mockProjectionStore{upserts: make(map[uuid.UUID][]float64)}
}

func (m *mockProjectionStore) Probe(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probes++
	if m.probeFn != nil {
		return m.probeFn()
	}

	return true, nil
}

func (m *mockProjectionStore) Upsert(_ context.Context, id uuid.UUID, v []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}

	m.upserts[id] = v

	return nil
}

func (m *mockProjectionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes = append(m.deletes, id)
	delete(m.upserts, id)

	return m.deleteErr
}

func (m *mockProjectionStore) Nearest(_ context.Context, q []float64, f models.QueryFilters, limit int) ([]models.Match, error) {
	if m.nearestFn != nil {
		return m.nearestFn(q, f, limit)
	}

	return nil, nil
}

func (m *mockProjectionStore) probeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.probes
}

// countingEmbedder wraps the local-only embeddings.Provider and counts calls.
type countingEmbedder struct {
	*embeddings.Provider

	mu    sync.Mutex
	calls int
}

func newCountingEmbedder(t *testing.T) *countingEmbedder {
	t.Helper()

	p, err := embeddings.NewProvider(embeddings.ProviderParams{Dimensions: testDims})
	require.NoError(t, err)

	return &countingEmbedder{Provider: p}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) embeddings.Embedding {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	return c.Provider.Embed(ctx, text)
}

func (c *countingEmbedder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

// recordingIndexingMetrics records index outcomes.
type recordingIndexingMetrics struct {
	mu               sync.Mutex
	outcomes         []string
	projectionWrites []bool
}

func (r *recordingIndexingMetrics) RecordIndexOutcome(_ context.Context, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingIndexingMetrics) RecordJobFailure(context.Context, string, bool) {}

func (r *recordingIndexingMetrics) RecordProjectionWrite(_ context.Context, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.projectionWrites = append(r.projectionWrites, success)
}

// recordingRetrievalMetrics records searches and accelerated failures.
type recordingRetrievalMetrics struct {
	mu       sync.Mutex
	sources  []string
	failures []string
}

func (r *recordingRetrievalMetrics) RecordSearch(_ context.Context, source string, _ time.Duration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, source)
}

func (r *recordingRetrievalMetrics) RecordAcceleratedFailure(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, reason)
}

type recordingCacheMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	uncached int
}

func (r *recordingCacheMetrics) RecordHit(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hits++
}

func (r *recordingCacheMetrics) RecordMiss(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.misses++
}

func (r *recordingCacheMetrics) RecordUncached(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.uncached++
}

func testBusiness(name string) *models.Business {
	return &models.Business{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Name:           name,
		Slug:           slugify(name),
		Description:    "Comida criolla y pica pollo",
		Address:        "Calle del Sol 12",
		Phone:          "809-555-0101",
		ProvinceName:   "Santiago",
		CityName:       "Santiago de los Caballeros",
		Categories:     []models.NamedRef{{ID: uuid.New(), Name: "Restaurantes"}},
		Verified:       true,
	}
}

func slugify(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r == ' ':
			out = append(out, '-')
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		default:
			out = append(out, r)
		}
	}

	return string(out)
}
