package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache lookup results used as the "result" attribute.
const (
	CacheResultHit      = "hit"
	CacheResultMiss     = "miss"
	CacheResultUncached = "uncached"
)

// CacheMetrics counts query-embedding cache lookups by cache and result.
// A lookup is "uncached" when it loaded a value that must not be stored (e.g. a local fallback
// vector while a remote model is configured).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
	RecordUncached(ctx context.Context, cacheName string)
}

type cacheMetrics struct {
	lookups metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	lookups, err := meter.Int64Counter(
		MetricNameCacheLookups,
		metric.WithDescription("Query embedding cache lookups by cache and result (hit, miss, uncached). "+
			"Hit ratio = rate(result=hit) / rate(all)."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache lookups counter: %w", err)
	}

	return &cacheMetrics{lookups: lookups}, nil
}

func (c *cacheMetrics) record(ctx context.Context, cacheName, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, NormalizeCacheName(cacheName)),
		attribute.String(AttrResult, result),
	))
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, CacheResultHit)
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, CacheResultMiss)
}

func (c *cacheMetrics) RecordUncached(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, CacheResultUncached)
}
