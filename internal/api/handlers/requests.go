// Package handlers holds the HTTP handlers of the search, concierge and indexing API.
package handlers

import (
	"github.com/google/uuid"

	"github.com/directorio/hub/internal/models"
)

// SearchRequest is the body of POST /v1/search and POST /v1/concierge/ask, and the query string
// of GET /v1/search (q, organizationId, categoryId, provinceId, cityId, limit).
type SearchRequest struct {
	Query          string     `json:"query"                    form:"q"              validate:"max=500,no_null_bytes"`
	OrganizationID *uuid.UUID `json:"organizationId,omitempty" form:"organizationId"` //nolint:tagliatelle // API contract
	CategoryID     *uuid.UUID `json:"categoryId,omitempty"     form:"categoryId"`     //nolint:tagliatelle // API contract
	ProvinceID     *uuid.UUID `json:"provinceId,omitempty"     form:"provinceId"`     //nolint:tagliatelle // API contract
	CityID         *uuid.UUID `json:"cityId,omitempty"         form:"cityId"`         //nolint:tagliatelle // API contract
	Limit          int        `json:"limit,omitempty"          form:"limit"`
}

// Filters returns the retrieval filters of the request.
func (r *SearchRequest) Filters() models.QueryFilters {
	return models.QueryFilters{
		OrganizationID: r.OrganizationID,
		CategoryID:     r.CategoryID,
		ProvinceID:     r.ProvinceID,
		CityID:         r.CityID,
		Limit:          r.Limit,
	}
}
