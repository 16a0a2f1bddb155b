package models

import (
	"github.com/google/uuid"
)

// Limits applied to QueryFilters.Limit.
const (
	DefaultSearchLimit = 10
	MinSearchLimit     = 1
	MaxSearchLimit     = 25
)

// QueryFilters narrows a semantic search. Nil filters are not applied.
type QueryFilters struct {
	OrganizationID *uuid.UUID `json:"organizationId,omitempty"` //nolint:tagliatelle // API contract
	CategoryID     *uuid.UUID `json:"categoryId,omitempty"`     //nolint:tagliatelle // API contract
	ProvinceID     *uuid.UUID `json:"provinceId,omitempty"`     //nolint:tagliatelle // API contract
	CityID         *uuid.UUID `json:"cityId,omitempty"`         //nolint:tagliatelle // API contract
	Limit          int        `json:"limit,omitempty"`
}

// EffectiveLimit returns Limit clamped to [MinSearchLimit, MaxSearchLimit];
// an unset (zero) limit becomes DefaultSearchLimit.
func (f QueryFilters) EffectiveLimit() int {
	if f.Limit == 0 {
		return DefaultSearchLimit
	}

	return max(MinSearchLimit, min(f.Limit, MaxSearchLimit))
}

// MatchSource tags which retrieval backend served a search.
type MatchSource string

// Match sources.
const (
	MatchSourceAccelerated MatchSource = "accelerated"
	MatchSourceFallback    MatchSource = "fallback"
)

// Match is a ranked search hit with the business display fields.
type Match struct {
	BusinessID     uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organizationId"` //nolint:tagliatelle // API contract
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description"`
	Address        string     `json:"address"`
	ProvinceID     uuid.UUID  `json:"provinceId"`       //nolint:tagliatelle // API contract
	CityID         *uuid.UUID `json:"cityId,omitempty"` //nolint:tagliatelle // API contract
	Phone          string     `json:"phone"`
	WhatsApp       string     `json:"whatsapp"`
	Latitude       *float64   `json:"lat,omitempty"`
	Longitude      *float64   `json:"lng,omitempty"`
	Score          float64    `json:"score"`
}

// Candidate is a fallback-path row: display fields plus the stored vector to rank.
type Candidate struct {
	Match

	Embedding []float64
}

// SearchResult is the ranked output of a search and the backend that produced it.
type SearchResult struct {
	Matches []Match     `json:"matches"`
	Source  MatchSource `json:"source"`
}
