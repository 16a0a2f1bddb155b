package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/models"
)

type retrievalFixture struct {
	store      *memStore
	projection *mockProjectionStore
	embedder   *countingEmbedder
	metrics    *recordingRetrievalMetrics
	cache      *recordingCacheMetrics
	indexer    *Indexer
	engine     *RetrievalEngine
}

func newRetrievalFixture(t *testing.T, accelerated bool) *retrievalFixture {
	t.Helper()

	f := &retrievalFixture{
		store:      newMemStore(),
		projection: newMockProjectionStore(),
		embedder:   newCountingEmbedder(t),
		metrics:    &recordingRetrievalMetrics{},
		cache:      &recordingCacheMetrics{},
	}

	if !accelerated {
		f.projection.probeFn = func() (bool, error) { return false, nil }
	}

	projection := NewVectorProjectionSync(VectorProjectionSyncParams{Store: f.projection, Retrieval: f.metrics})

	f.indexer = NewIndexer(IndexerParams{
		Businesses: f.store,
		Records:    f.store,
		Embedder:   f.embedder,
		Projection: projection,
	})

	engine, err := NewRetrievalEngine(RetrievalEngineParams{
		Accelerated:    NewAcceleratedBackend(f.projection),
		Fallback:       NewFallbackBackend(f.store),
		Projection:     projection,
		Embedder:       f.embedder,
		QueryCacheSize: 16,
		QueryCacheTTL:  time.Minute,
		Metrics:        f.metrics,
		CacheMetrics:   f.cache,
	})
	require.NoError(t, err)

	f.engine = engine

	return f
}

func (f *retrievalFixture) index(t *testing.T, names ...string) []*models.Business {
	t.Helper()

	out := make([]*models.Business, 0, len(names))

	for _, name := range names {
		b := testBusiness(name)
		b.Description = name
		f.store.putBusiness(b)

		_, err := f.indexer.Upsert(context.Background(), b.ID)
		require.NoError(t, err)

		out = append(out, b)
	}

	return out
}

func TestRetrievalEngine_EmptyVector(t *testing.T) {
	store := &panicCandidateStore{}
	engine, err := NewRetrievalEngine(RetrievalEngineParams{Fallback: NewFallbackBackend(store)})
	require.NoError(t, err)

	result, err := engine.Search(context.Background(), nil, models.QueryFilters{Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, models.MatchSourceFallback, result.Source)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

type panicCandidateStore struct{}

func (panicCandidateStore) ListCandidates(context.Context, models.QueryFilters, int) ([]models.Candidate, error) {
	panic("store must not be touched")
}

func TestRetrievalEngine_FallbackRanking(t *testing.T) {
	f := newRetrievalFixture(t, false)
	f.index(t, "Pica Pollo Santiago", "Colmado Luz", "Farmacia Carol", "Pica Pollo Don Pepe", "Ferreteria Ochoa")

	result, err := f.engine.SearchText(context.Background(), "pica pollo cerca de Santiago", models.QueryFilters{Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, models.MatchSourceFallback, result.Source)
	require.Len(t, result.Matches, 3)

	for i, m := range result.Matches {
		assert.GreaterOrEqual(t, m.Score, -1.0)
		assert.LessOrEqual(t, m.Score, 1.0)

		if i > 0 {
			assert.GreaterOrEqual(t, result.Matches[i-1].Score, m.Score)
		}
	}

	assert.Equal(t, []string{"fallback"}, f.metrics.sources)
}

func TestRetrievalEngine_FallbackLimits(t *testing.T) {
	f := newRetrievalFixture(t, false)

	names := make([]string, 0, 30)
	for i := range 30 {
		names = append(names, "Negocio "+string(rune('A'+i%26))+string(rune('a'+i/26)))
	}

	f.index(t, names...)

	query := f.embedder.CreateEmbedding(context.Background(), "negocio")

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: models.DefaultSearchLimit},
		{limit: -4, want: 1},
		{limit: 3, want: 3},
		{limit: 100, want: models.MaxSearchLimit},
	}

	for _, tt := range tests {
		result, err := f.engine.Search(context.Background(), query, models.QueryFilters{Limit: tt.limit})
		require.NoError(t, err)
		assert.Len(t, result.Matches, tt.want, "limit %d", tt.limit)
	}
}

func TestRetrievalEngine_FallbackFilters(t *testing.T) {
	f := newRetrievalFixture(t, false)
	businesses := f.index(t, "Colmado Luz", "Farmacia Carol")

	org := businesses[1].OrganizationID
	query := f.embedder.CreateEmbedding(context.Background(), "colmado")

	result, err := f.engine.Search(context.Background(), query, models.QueryFilters{OrganizationID: &org})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, businesses[1].ID, result.Matches[0].BusinessID)
}

func TestRetrievalEngine_Accelerated(t *testing.T) {
	f := newRetrievalFixture(t, true)

	want := []models.Match{{BusinessID: uuid.New(), Name: "Colmado Luz", Score: 0.93}}

	var gotLimit int

	f.projection.nearestFn = func(_ []float64, _ models.QueryFilters, limit int) ([]models.Match, error) {
		gotLimit = limit

		return want, nil
	}

	result, err := f.engine.SearchText(context.Background(), "colmado", models.QueryFilters{Limit: 40})
	require.NoError(t, err)

	assert.Equal(t, models.MatchSourceAccelerated, result.Source)
	assert.Equal(t, want, result.Matches)
	assert.Equal(t, models.MaxSearchLimit, gotLimit)
}

func TestRetrievalEngine_AcceleratedQueryFailureFallsBack(t *testing.T) {
	f := newRetrievalFixture(t, true)
	f.index(t, "Colmado Luz")

	f.projection.nearestFn = func([]float64, models.QueryFilters, int) ([]models.Match, error) {
		return nil, errStorage
	}

	result, err := f.engine.SearchText(context.Background(), "colmado", models.QueryFilters{})
	require.NoError(t, err)

	assert.Equal(t, models.MatchSourceFallback, result.Source)
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, []string{"query_failed"}, f.metrics.failures)
	assert.Equal(t, ProjectionAvailable, f.engine.projection.State(), "query failures do not degrade")
}

func TestRetrievalEngine_QueryCache(t *testing.T) {
	f := newRetrievalFixture(t, false)

	_, err := f.engine.SearchText(context.Background(), "colmado", models.QueryFilters{})
	require.NoError(t, err)

	_, err = f.engine.SearchText(context.Background(), "  colmado ", models.QueryFilters{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.embedder.count())
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, 1, f.cache.misses)
}

func TestRetrievalEngine_EmptyText(t *testing.T) {
	f := newRetrievalFixture(t, false)
	f.index(t, "Colmado Luz")

	result, err := f.engine.SearchText(context.Background(), "   ", models.QueryFilters{})
	require.NoError(t, err)

	assert.Equal(t, models.MatchSourceFallback, result.Source)
	assert.Empty(t, result.Matches)
	assert.Equal(t, 1, f.embedder.count(), "only the indexing call")
}

// flakyEmbedder reports a remote provider but always returns the local fallback.
type flakyEmbedder struct {
	*countingEmbedder
}

func (f *flakyEmbedder) ProviderName() string { return embeddings.ProviderNameRemote }

func TestRetrievalEngine_FallbackVectorsNotCachedWhenRemoteConfigured(t *testing.T) {
	embedder := &flakyEmbedder{countingEmbedder: newCountingEmbedder(t)}
	cacheMetrics := &recordingCacheMetrics{}

	engine, err := NewRetrievalEngine(RetrievalEngineParams{
		Fallback:       NewFallbackBackend(newMemStore()),
		Embedder:       embedder,
		QueryCacheSize: 16,
		CacheMetrics:   cacheMetrics,
	})
	require.NoError(t, err)

	first, err := engine.EmbedQuery(context.Background(), "colmado")
	require.NoError(t, err)

	second, err := engine.EmbedQuery(context.Background(), "colmado")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, embedder.count())
	assert.Equal(t, 2, cacheMetrics.uncached)
	assert.Zero(t, cacheMetrics.hits)
}

func TestRankCandidates(t *testing.T) {
	query := []float64{1, 0}
	id := func() uuid.UUID { return uuid.New() }

	candidates := []models.Candidate{
		{Match: models.Match{BusinessID: id(), Name: "orthogonal"}, Embedding: []float64{0, 1}},
		{Match: models.Match{BusinessID: id(), Name: "same"}, Embedding: []float64{2, 0}},
		{Match: models.Match{BusinessID: id(), Name: "opposite"}, Embedding: []float64{-1, 0}},
		{Match: models.Match{BusinessID: id(), Name: "nan"}, Embedding: []float64{math.NaN(), 0}},
		{Match: models.Match{BusinessID: id(), Name: "diagonal"}, Embedding: []float64{1, 1}},
		{Match: models.Match{BusinessID: id(), Name: "empty"}, Embedding: nil},
	}

	got := RankCandidates(query, candidates, 10)

	names := make([]string, 0, len(got))
	for _, m := range got {
		names = append(names, m.Name)
	}

	assert.Equal(t, []string{"same", "diagonal", "orthogonal", "opposite", "empty"}, names)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.InDelta(t, -1.0, got[4].Score, 1e-9)

	assert.Len(t, RankCandidates(query, candidates, 2), 2)
}

func TestNewRetrievalEngine_RequiresFallback(t *testing.T) {
	_, err := NewRetrievalEngine(RetrievalEngineParams{})
	assert.Error(t, err)
}
