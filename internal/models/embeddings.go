package models

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingStatus is the lifecycle state of a business embedding. ABSENT is never stored;
// it is the state of a business with no row.
type EmbeddingStatus string

// Embedding statuses.
const (
	EmbeddingStatusAbsent  EmbeddingStatus = "ABSENT"
	EmbeddingStatusIndexed EmbeddingStatus = "INDEXED"
)

// EmbeddingRecord is the one-per-business embedding row. len(Embedding) == Dimensions.
type EmbeddingRecord struct {
	ID             uuid.UUID       `json:"id"`
	BusinessID     uuid.UUID       `json:"business_id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Content        string          `json:"content"`
	Embedding      []float64       `json:"embedding"`
	Dimensions     int             `json:"dimensions"`
	ProviderName   string          `json:"provider_name"`
	SourceChecksum string          `json:"source_checksum"`
	Status         EmbeddingStatus `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsCurrent reports whether the record is indexed from a document with the given checksum.
func (r *EmbeddingRecord) IsCurrent(checksum string) bool {
	return r != nil && r.Status == EmbeddingStatusIndexed && r.SourceChecksum == checksum
}
