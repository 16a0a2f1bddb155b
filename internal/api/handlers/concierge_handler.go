package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/directorio/hub/internal/api/response"
	"github.com/directorio/hub/internal/api/validation"
	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
	"github.com/directorio/hub/internal/service"
)

// Asker answers concierge questions (service.Concierge).
type Asker interface {
	Ask(ctx context.Context, query string, filters models.QueryFilters) (*service.ConciergeAnswer, error)
}

// ConciergeHandler handles the retrieval-augmented concierge.
type ConciergeHandler struct {
	asker Asker
}

// NewConciergeHandler creates a new concierge handler.
func NewConciergeHandler(asker Asker) *ConciergeHandler {
	return &ConciergeHandler{asker: asker}
}

// Ask handles POST /v1/concierge/ask.
func (h *ConciergeHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	answer, err := h.asker.Ask(r.Context(), req.Query, req.Filters())
	if err != nil {
		var vErr *huberrors.ValidationError
		if errors.As(err, &vErr) {
			response.RespondError(w, http.StatusBadRequest, "Validation Error", vErr.Error())

			return
		}

		slog.ErrorContext(r.Context(), "concierge: failed", "error", err)
		response.RespondInternalServerError(w, "Concierge request failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, answer)
}
