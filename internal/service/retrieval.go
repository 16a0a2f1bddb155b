package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/directorio/hub/internal/models"
	"github.com/directorio/hub/internal/observability"
	"github.com/directorio/hub/pkg/cache"
	pkgembeddings "github.com/directorio/hub/pkg/embeddings"
)

// MaxFallbackCandidates bounds the rows ranked in-process by the fallback backend.
const MaxFallbackCandidates = 400

// RetrievalBackend ranks businesses against a query vector.
type RetrievalBackend interface {
	Source() models.MatchSource
	Search(ctx context.Context, query []float64, filters models.QueryFilters) ([]models.Match, error)
}

// AcceleratedBackend runs the nearest-neighbour query inside the vector index.
type AcceleratedBackend struct {
	store VectorProjectionStore
}

// NewAcceleratedBackend creates an AcceleratedBackend over store.
func NewAcceleratedBackend(store VectorProjectionStore) *AcceleratedBackend {
	return &AcceleratedBackend{store: store}
}

// Source returns MatchSourceAccelerated.
func (b *AcceleratedBackend) Source() models.MatchSource { return models.MatchSourceAccelerated }

// Search returns the closest matches by cosine distance, score = 1 - distance.
func (b *AcceleratedBackend) Search(ctx context.Context, query []float64, filters models.QueryFilters) ([]models.Match, error) {
	matches, err := b.store.Nearest(ctx, query, filters, filters.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("accelerated search: %w", err)
	}

	return matches, nil
}

// FallbackBackend ranks a bounded candidate set by cosine similarity in process.
type FallbackBackend struct {
	store CandidateStore
}

// NewFallbackBackend creates a FallbackBackend over store.
func NewFallbackBackend(store CandidateStore) *FallbackBackend {
	return &FallbackBackend{store: store}
}

// Source returns MatchSourceFallback.
func (b *FallbackBackend) Source() models.MatchSource { return models.MatchSourceFallback }

// Search loads up to MaxFallbackCandidates matching rows and ranks them.
func (b *FallbackBackend) Search(ctx context.Context, query []float64, filters models.QueryFilters) ([]models.Match, error) {
	candidates, err := b.store.ListCandidates(ctx, filters, MaxFallbackCandidates)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	return RankCandidates(query, candidates, filters.EffectiveLimit()), nil
}

// RankCandidates scores candidates against query, drops non-finite scores and returns the top
// limit matches by descending score. Ties keep candidate order.
func RankCandidates(query []float64, candidates []models.Candidate, limit int) []models.Match {
	matches := make([]models.Match, 0, len(candidates))

	for _, c := range candidates {
		score := pkgembeddings.CosineSimilarity(query, c.Embedding)
		if !pkgembeddings.IsFinite(score) {
			continue
		}

		m := c.Match
		m.Score = score
		matches = append(matches, m)
	}

	slices.SortStableFunc(matches, func(a, b models.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}

type queryKey struct {
	dimensions int
	provider   string
	text       string
}

func (k queryKey) String() string {
	return strconv.Itoa(k.dimensions) + "|" + k.provider + "|" + k.text
}

// uncachedEmbedding carries a local fallback vector out of the cache loader without storing it,
// so the next query retries the remote model.
type uncachedEmbedding struct {
	vector []float64
}

func (uncachedEmbedding) Error() string { return "embedding produced by local fallback" }

// RetrievalEngine selects the accelerated backend when the vector index is available and the
// fallback backend otherwise.
type RetrievalEngine struct {
	accelerated RetrievalBackend
	fallback    RetrievalBackend
	projection  *VectorProjectionSync
	embedder    Embedder
	queryCache  *cache.LoaderCache[queryKey, []float64]

	metrics      observability.RetrievalMetrics
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// RetrievalEngineParams configures a RetrievalEngine. QueryCacheSize <= 0 disables the
// query-embedding cache. Metrics may be nil.
type RetrievalEngineParams struct {
	Accelerated    RetrievalBackend
	Fallback       RetrievalBackend
	Projection     *VectorProjectionSync
	Embedder       Embedder
	QueryCacheSize int
	QueryCacheTTL  time.Duration
	Metrics        observability.RetrievalMetrics
	CacheMetrics   observability.CacheMetrics
	Logger         *slog.Logger
}

// NewRetrievalEngine creates a RetrievalEngine.
func NewRetrievalEngine(params RetrievalEngineParams) (*RetrievalEngine, error) {
	if params.Fallback == nil {
		return nil, errors.New("retrieval engine: fallback backend is required")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &RetrievalEngine{
		accelerated:  params.Accelerated,
		fallback:     params.Fallback,
		projection:   params.Projection,
		embedder:     params.Embedder,
		metrics:      params.Metrics,
		cacheMetrics: params.CacheMetrics,
		logger:       logger,
	}

	if params.QueryCacheSize > 0 {
		c, err := cache.NewLoaderCache[queryKey, []float64](params.QueryCacheSize, params.QueryCacheTTL, queryKey.String)
		if err != nil {
			return nil, fmt.Errorf("retrieval engine: query cache: %w", err)
		}

		e.queryCache = c
	}

	return e, nil
}

// Search ranks businesses against query. An empty query returns an empty fallback result
// without touching any store.
func (e *RetrievalEngine) Search(ctx context.Context, query []float64, filters models.QueryFilters) (*models.SearchResult, error) {
	if len(query) == 0 {
		return &models.SearchResult{Matches: []models.Match{}, Source: models.MatchSourceFallback}, nil
	}

	start := time.Now()

	if e.useAccelerated(ctx) {
		matches, err := e.accelerated.Search(ctx, query, filters)
		if err == nil {
			return e.result(ctx, e.accelerated.Source(), matches, start), nil
		}

		if e.metrics != nil {
			e.metrics.RecordAcceleratedFailure(ctx, "query_failed")
		}

		e.logger.WarnContext(ctx, "retrieval: accelerated query failed, using in-process ranking", "error", err)
	}

	matches, err := e.fallback.Search(ctx, query, filters)
	if err != nil {
		return nil, err
	}

	return e.result(ctx, e.fallback.Source(), matches, start), nil
}

// SearchText embeds text and searches with the vector. Whitespace-only text returns an empty
// fallback result.
func (e *RetrievalEngine) SearchText(ctx context.Context, text string, filters models.QueryFilters) (*models.SearchResult, error) {
	ctx, span := observability.StartSpan(ctx, "retrieval.search")

	query, err := e.EmbedQuery(ctx, text)
	if err != nil {
		observability.EndSpan(span, err)

		return nil, err
	}

	result, err := e.Search(ctx, query, filters)
	if err == nil {
		span.SetAttributes(
			attribute.String("source", string(result.Source)),
			attribute.Int("matches", len(result.Matches)),
		)
	}

	observability.EndSpan(span, err)

	return result, err
}

// EmbedQuery returns the query vector for text via the query-embedding cache. Vectors from the
// local fallback are cached only when no remote model is configured.
func (e *RetrievalEngine) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" || e.embedder == nil {
		return nil, nil
	}

	if e.queryCache == nil {
		return e.embedder.Embed(ctx, text).Vector, nil
	}

	key := queryKey{dimensions: e.embedder.Dimensions(), provider: e.embedder.ProviderName(), text: text}

	vector, hit, err := e.queryCache.GetWithStats(ctx, key, e.loadQuery)
	if err != nil {
		var uncached uncachedEmbedding
		if errors.As(err, &uncached) {
			if e.cacheMetrics != nil {
				e.cacheMetrics.RecordUncached(ctx, observability.CacheQueryEmbedding)
			}

			return uncached.vector, nil
		}

		return nil, fmt.Errorf("embed query: %w", err)
	}

	e.recordCache(ctx, hit)

	return vector, nil
}

func (e *RetrievalEngine) loadQuery(ctx context.Context, key queryKey) ([]float64, error) {
	emb := e.embedder.Embed(ctx, key.text)
	if emb.Source != key.provider {
		return nil, uncachedEmbedding{vector: emb.Vector}
	}

	return emb.Vector, nil
}

func (e *RetrievalEngine) useAccelerated(ctx context.Context) bool {
	return e.accelerated != nil && e.projection != nil && e.projection.IsAvailable(ctx)
}

func (e *RetrievalEngine) result(ctx context.Context, source models.MatchSource, matches []models.Match, start time.Time) *models.SearchResult {
	if matches == nil {
		matches = []models.Match{}
	}

	if e.metrics != nil {
		e.metrics.RecordSearch(ctx, string(source), time.Since(start), len(matches))
	}

	return &models.SearchResult{Matches: matches, Source: source}
}

func (e *RetrievalEngine) recordCache(ctx context.Context, hit bool) {
	if e.cacheMetrics == nil {
		return
	}

	if hit {
		e.cacheMetrics.RecordHit(ctx, observability.CacheQueryEmbedding)
	} else {
		e.cacheMetrics.RecordMiss(ctx, observability.CacheQueryEmbedding)
	}
}
