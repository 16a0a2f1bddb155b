package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all hub metric collectors. When metrics are disabled, all fields are nil.
// Components that accept one of the interfaces can receive the corresponding field; they already handle nil.
type Metrics struct {
	Events       EventMetrics
	Cache        CacheMetrics
	API          APIMetrics
	Dependencies DependencyMetrics
	Indexing     IndexingMetrics
	Retrieval    RetrievalMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	events, err := NewEventMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("event metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	dependencies, err := NewDependencyMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("dependency metrics: %w", err)
	}

	indexing, err := NewIndexingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("indexing metrics: %w", err)
	}

	retrieval, err := NewRetrievalMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("retrieval metrics: %w", err)
	}

	return &Metrics{
		Events:       events,
		Cache:        cache,
		API:          api,
		Dependencies: dependencies,
		Indexing:     indexing,
		Retrieval:    retrieval,
	}, nil
}
