package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
	"github.com/directorio/hub/internal/service"
)

type mockSearcher struct {
	searchFn func(ctx context.Context, text string, filters models.QueryFilters) (*models.SearchResult, error)
}

func (m *mockSearcher) SearchText(ctx context.Context, text string, filters models.QueryFilters) (*models.SearchResult, error) {
	return m.searchFn(ctx, text, filters)
}

type mockAsker struct {
	askFn func(ctx context.Context, query string, filters models.QueryFilters) (*service.ConciergeAnswer, error)
}

func (m *mockAsker) Ask(ctx context.Context, query string, filters models.QueryFilters) (*service.ConciergeAnswer, error) {
	return m.askFn(ctx, query, filters)
}

type mockIndexer struct {
	upsertFn func(ctx context.Context, id uuid.UUID) (service.IndexOutcome, error)
	removeFn func(ctx context.Context, id uuid.UUID) (service.IndexOutcome, error)
}

func (m *mockIndexer) Upsert(ctx context.Context, id uuid.UUID) (service.IndexOutcome, error) {
	return m.upsertFn(ctx, id)
}

func (m *mockIndexer) Remove(ctx context.Context, id uuid.UUID) (service.IndexOutcome, error) {
	return m.removeFn(ctx, id)
}

type mockProber struct {
	reprobed bool
	state    service.ProjectionState
}

func (m *mockProber) Reprobe(context.Context) {
	m.reprobed = true
	m.state = service.ProjectionUnknown
}

func (m *mockProber) IsAvailable(context.Context) bool {
	m.state = service.ProjectionAvailable

	return true
}

func (m *mockProber) State() service.ProjectionState { return m.state }

func TestSearchHandler_Search(t *testing.T) {
	province := uuid.New()

	var gotText string

	var gotFilters models.QueryFilters

	h := NewSearchHandler(&mockSearcher{searchFn: func(_ context.Context, text string, f models.QueryFilters) (*models.SearchResult, error) {
		gotText, gotFilters = text, f

		return &models.SearchResult{
			Matches: []models.Match{{BusinessID: uuid.New(), Name: "Colmado Luz", Score: 0.8}},
			Source:  models.MatchSourceFallback,
		}, nil
	}})

	body := `{"query":"pica pollo cerca de Santiago","provinceId":"` + province.String() + `","limit":3}`
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pica pollo cerca de Santiago", gotText)
	assert.Equal(t, 3, gotFilters.Limit)
	require.NotNil(t, gotFilters.ProvinceID)
	assert.Equal(t, province, *gotFilters.ProvinceID)

	var res models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.MatchSourceFallback, res.Source)
	assert.Len(t, res.Matches, 1)
}

func TestSearchHandler_SearchQuery(t *testing.T) {
	var gotText string

	h := NewSearchHandler(&mockSearcher{searchFn: func(_ context.Context, text string, _ models.QueryFilters) (*models.SearchResult, error) {
		gotText = text

		return &models.SearchResult{Matches: []models.Match{}, Source: models.MatchSourceAccelerated}, nil
	}})

	rec := httptest.NewRecorder()
	h.SearchQuery(rec, httptest.NewRequest(http.MethodGet, "/v1/search?q=farmacia&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "farmacia", gotText)
	assert.Contains(t, rec.Body.String(), `"source":"accelerated"`)
}

func TestSearchHandler_Errors(t *testing.T) {
	failing := NewSearchHandler(&mockSearcher{searchFn: func(context.Context, string, models.QueryFilters) (*models.SearchResult, error) {
		return nil, errors.New("db down")
	}})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"q":"x"}`, want: http.StatusBadRequest},
		{name: "invalid uuid", body: `{"query":"x","cityId":"nope"}`, want: http.StatusBadRequest},
		{name: "null byte", body: `{"query":"a\u0000b"}`, want: http.StatusBadRequest},
		{name: "storage failure", body: `{"query":"x"}`, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			failing.Search(rec, httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestConciergeHandler_Ask(t *testing.T) {
	h := NewConciergeHandler(&mockAsker{askFn: func(_ context.Context, q string, _ models.QueryFilters) (*service.ConciergeAnswer, error) {
		if strings.TrimSpace(q) == "" {
			return nil, huberrors.WrapValidation("query", service.ErrEmptyQuery)
		}

		return &service.ConciergeAnswer{
			Answer:  "Prueba Colmado Luz.",
			Matches: []service.ConciergeMatch{},
			Meta:    service.ConciergeMeta{Source: models.MatchSourceFallback, Query: q, ProviderName: "remote"},
		}, nil
	}})

	rec := httptest.NewRecorder()
	h.Ask(rec, httptest.NewRequest(http.MethodPost, "/v1/concierge/ask", strings.NewReader(`{"query":"colmado"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer":"Prueba Colmado Luz."`)
	assert.Contains(t, rec.Body.String(), `"providerName":"remote"`)

	rec = httptest.NewRecorder()
	h.Ask(rec, httptest.NewRequest(http.MethodPost, "/v1/concierge/ask", strings.NewReader(`{"query":"   "}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestConciergeHandler_InternalError(t *testing.T) {
	h := NewConciergeHandler(&mockAsker{askFn: func(context.Context, string, models.QueryFilters) (*service.ConciergeAnswer, error) {
		return nil, errors.New("db down")
	}})

	rec := httptest.NewRecorder()
	h.Ask(rec, httptest.NewRequest(http.MethodPost, "/v1/concierge/ask", strings.NewReader(`{"query":"x"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)

	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestIndexHandler(t *testing.T) {
	id := uuid.New()

	h := NewIndexHandler(&mockIndexer{
		upsertFn: func(_ context.Context, got uuid.UUID) (service.IndexOutcome, error) {
			assert.Equal(t, id, got)

			return service.OutcomeIndexed, nil
		},
		removeFn: func(context.Context, uuid.UUID) (service.IndexOutcome, error) {
			return service.OutcomeFailed, errors.New("db down")
		},
	})

	rec := httptest.NewRecorder()
	h.Upsert(rec, withID(httptest.NewRequest(http.MethodPost, "/", nil), id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"businessId":"`+id.String()+`","outcome":"indexed"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Remove(rec, withID(httptest.NewRequest(http.MethodDelete, "/", nil), id.String()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.Upsert(rec, withID(httptest.NewRequest(http.MethodPost, "/", nil), "not-a-uuid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVectorIndexHandler(t *testing.T) {
	prober := &mockProber{state: service.ProjectionUnavailable}
	h := NewVectorIndexHandler(prober)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"available":false,"state":"unavailable"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Probe(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, prober.reprobed)
	assert.JSONEq(t, `{"available":true,"state":"available"}`, rec.Body.String())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(pingFunc(func(context.Context) error { return nil })).
		Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("connection refused") })).
		Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", rec.Body.String())
}
