// Package service implements business indexing, semantic retrieval and the concierge flow.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/directorio/hub/internal/embeddings"
	"github.com/directorio/hub/internal/models"
)

// BusinessStore reads business graphs and stamps indexing progress (repository.BusinessesRepository).
type BusinessStore interface {
	GetForIndexing(ctx context.Context, id uuid.UUID) (*models.Business, error)
	MarkIndexed(ctx context.Context, id uuid.UUID, at time.Time) error
	ListIndexableIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

// EmbeddingStore persists one embedding record per business (repository.EmbeddingsRepository).
type EmbeddingStore interface {
	GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*models.EmbeddingRecord, error)
	Upsert(ctx context.Context, rec *models.EmbeddingRecord) (*models.EmbeddingRecord, error)
	DeleteByBusinessID(ctx context.Context, businessID uuid.UUID) (bool, error)
	ListOrphanBusinessIDs(ctx context.Context) ([]uuid.UUID, error)
}

// CandidateStore lists fallback search candidates (repository.EmbeddingsRepository).
type CandidateStore interface {
	ListCandidates(ctx context.Context, filters models.QueryFilters, limit int) ([]models.Candidate, error)
}

// VectorProjectionStore is the accelerated vector index (repository.VectorProjectionRepository).
type VectorProjectionStore interface {
	Probe(ctx context.Context) (bool, error)
	Upsert(ctx context.Context, embeddingID uuid.UUID, embedding []float64) error
	Delete(ctx context.Context, embeddingID uuid.UUID) error
	Nearest(ctx context.Context, query []float64, filters models.QueryFilters, limit int) ([]models.Match, error)
}

// Embedder produces vectors (embeddings.Provider).
type Embedder interface {
	Embed(ctx context.Context, text string) embeddings.Embedding
	Dimensions() int
	ProviderName() string
}

// ChatCompleter answers prompts (embeddings.Provider).
type ChatCompleter interface {
	GenerateChatCompletion(ctx context.Context, req embeddings.ChatRequest) string
	ProviderName() string
}
