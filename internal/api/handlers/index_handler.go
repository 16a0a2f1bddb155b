package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/directorio/hub/internal/api/response"
	"github.com/directorio/hub/internal/service"
)

// BusinessIndexer reindexes or removes one business (service.Indexer).
type BusinessIndexer interface {
	Upsert(ctx context.Context, businessID uuid.UUID) (service.IndexOutcome, error)
	Remove(ctx context.Context, businessID uuid.UUID) (service.IndexOutcome, error)
}

// IndexResponse reports what an index operation did.
type IndexResponse struct {
	BusinessID uuid.UUID            `json:"businessId"` //nolint:tagliatelle // API contract
	Outcome    service.IndexOutcome `json:"outcome"`
}

// IndexHandler exposes on-demand indexing of a single business.
type IndexHandler struct {
	indexer BusinessIndexer
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(indexer BusinessIndexer) *IndexHandler {
	return &IndexHandler{indexer: indexer}
}

// Upsert handles POST /v1/businesses/{id}/index.
func (h *IndexHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "upsert", h.indexer.Upsert)
}

// Remove handles DELETE /v1/businesses/{id}/index. Removing a business that is not indexed succeeds.
func (h *IndexHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "remove", h.indexer.Remove)
}

func (h *IndexHandler) run(
	w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, uuid.UUID) (service.IndexOutcome, error),
) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid business ID")

		return
	}

	outcome, err := fn(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "index: "+op+" failed", "business_id", id, "error", err)
		response.RespondInternalServerError(w, "Index operation failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, IndexResponse{BusinessID: id, Outcome: outcome})
}
