package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/directorio/hub/internal/api/response"
	"github.com/directorio/hub/internal/api/validation"
	"github.com/directorio/hub/internal/models"
)

// Searcher runs text searches (service.RetrievalEngine).
type Searcher interface {
	SearchText(ctx context.Context, text string, filters models.QueryFilters) (*models.SearchResult, error)
}

// SearchHandler handles semantic business search.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search handles POST /v1/search. An empty query returns an empty result.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	h.search(w, r, &req)
}

// SearchQuery handles GET /v1/search with the request in the query string.
func (h *SearchHandler) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := validation.DecodeQueryParams(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid query parameters")

		return
	}

	h.search(w, r, &req)
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request, req *SearchRequest) {
	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	result, err := h.searcher.SearchText(r.Context(), req.Query, req.Filters())
	if err != nil {
		slog.ErrorContext(r.Context(), "search: failed", "error", err)
		response.RespondInternalServerError(w, "Search failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
