// Package api assembles the HTTP router of the directory hub.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/directorio/hub/internal/api/handlers"
	"github.com/directorio/hub/internal/api/middleware"
)

// DefaultMaxBodyBytes limits request bodies of the API.
const DefaultMaxBodyBytes = 64 << 10

// RouterParams holds the handlers and middleware dependencies of the router.
// Metrics may be nil (no /metrics route) and recorders may be nil (metrics disabled).
type RouterParams struct {
	APIKey       string
	MaxBodyBytes int64

	Health      *handlers.HealthHandler
	Search      *handlers.SearchHandler
	Concierge   *handlers.ConciergeHandler
	Index       *handlers.IndexHandler
	VectorIndex *handlers.VectorIndexHandler
	Metrics     http.Handler

	RequestRecorder middleware.RequestRecorder
	BodyRecorder    middleware.RequestBodyTooLargeRecorder
}

// NewRouter builds the router: /health and /metrics are public, /v1 requires the API key.
func NewRouter(p RouterParams) http.Handler {
	maxBody := p.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover)
	r.Use(middleware.Metrics(p.RequestRecorder))

	r.Get("/health", p.Health.Check)

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.Auth(p.APIKey))
		v1.Use(middleware.MaxBody(maxBody, p.BodyRecorder))

		v1.Post("/search", p.Search.Search)
		v1.Get("/search", p.Search.SearchQuery)
		v1.Post("/concierge/ask", p.Concierge.Ask)

		v1.Post("/businesses/{id}/index", p.Index.Upsert)
		v1.Delete("/businesses/{id}/index", p.Index.Remove)

		v1.Get("/vector-index", p.VectorIndex.Status)
		v1.Post("/vector-index/probe", p.VectorIndex.Probe)
	})

	return r
}
