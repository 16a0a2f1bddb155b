package handlers

import (
	"context"
	"net/http"

	"github.com/directorio/hub/internal/api/response"
	"github.com/directorio/hub/internal/service"
)

// ProjectionProber re-probes the accelerated vector index (service.VectorProjectionSync).
type ProjectionProber interface {
	Reprobe(ctx context.Context)
	IsAvailable(ctx context.Context) bool
	State() service.ProjectionState
}

// VectorIndexStatus is the response of the probe endpoint.
type VectorIndexStatus struct {
	Available bool   `json:"available"`
	State     string `json:"state"`
}

// VectorIndexHandler lets operators re-probe the accelerated index after fixing it.
type VectorIndexHandler struct {
	prober ProjectionProber
}

// NewVectorIndexHandler creates a new vector index handler.
func NewVectorIndexHandler(prober ProjectionProber) *VectorIndexHandler {
	return &VectorIndexHandler{prober: prober}
}

// Probe handles POST /v1/vector-index/probe.
func (h *VectorIndexHandler) Probe(w http.ResponseWriter, r *http.Request) {
	h.prober.Reprobe(r.Context())
	available := h.prober.IsAvailable(r.Context())

	response.RespondJSON(w, http.StatusOK, VectorIndexStatus{
		Available: available,
		State:     h.prober.State().String(),
	})
}

// Status handles GET /v1/vector-index without probing.
func (h *VectorIndexHandler) Status(w http.ResponseWriter, _ *http.Request) {
	state := h.prober.State()

	response.RespondJSON(w, http.StatusOK, VectorIndexStatus{
		Available: state == service.ProjectionAvailable,
		State:     state.String(),
	})
}
