package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
)

// MaxCandidates bounds the fallback search candidate set.
const MaxCandidates = 400

// EmbeddingsRepository handles data access for the business_embeddings table.
type EmbeddingsRepository struct {
	db *pgxpool.Pool
}

// NewEmbeddingsRepository creates a new embeddings repository.
func NewEmbeddingsRepository(db *pgxpool.Pool) *EmbeddingsRepository {
	return &EmbeddingsRepository{db: db}
}

const embeddingRecordColumns = `id, business_id, organization_id, content, embedding, dimensions,
	provider_name, source_checksum, status, created_at, updated_at`

func scanEmbeddingRecord(row rowScanner) (*models.EmbeddingRecord, error) {
	var rec models.EmbeddingRecord

	err := row.Scan(
		&rec.ID, &rec.BusinessID, &rec.OrganizationID, &rec.Content, &rec.Embedding, &rec.Dimensions,
		&rec.ProviderName, &rec.SourceChecksum, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// GetByBusinessID returns the embedding record of a business.
// Returns huberrors.ErrNotFound when the business has no record (status ABSENT).
func (r *EmbeddingsRepository) GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*models.EmbeddingRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+embeddingRecordColumns+` FROM business_embeddings WHERE business_id = $1`,
		businessID,
	)

	rec, err := scanEmbeddingRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NotFound("embedding record", businessID)
		}

		return nil, fmt.Errorf("get embedding record: %w", err)
	}

	return rec, nil
}

// Upsert inserts or replaces the single embedding record of rec.BusinessID and returns the stored row.
// The record id is stable across updates.
func (r *EmbeddingsRepository) Upsert(ctx context.Context, rec *models.EmbeddingRecord) (*models.EmbeddingRecord, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO business_embeddings (business_id, organization_id, content, embedding, dimensions,
			provider_name, source_checksum, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (business_id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			dimensions = EXCLUDED.dimensions,
			provider_name = EXCLUDED.provider_name,
			source_checksum = EXCLUDED.source_checksum,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING `+embeddingRecordColumns,
		rec.BusinessID, rec.OrganizationID, rec.Content, rec.Embedding, rec.Dimensions,
		rec.ProviderName, rec.SourceChecksum, models.EmbeddingStatusIndexed,
	)

	stored, err := scanEmbeddingRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert embedding record: %w", err)
	}

	return stored, nil
}

// DeleteByBusinessID removes the embedding record of a business. Deleting an absent record is not an error;
// the returned bool reports whether a row was removed.
func (r *EmbeddingsRepository) DeleteByBusinessID(ctx context.Context, businessID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM business_embeddings WHERE business_id = $1`, businessID)
	if err != nil {
		return false, fmt.Errorf("delete embedding record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListCandidates returns up to limit indexed records of verified, live businesses matching filters,
// with their stored vectors, for in-process ranking. Order is unspecified.
func (r *EmbeddingsRepository) ListCandidates(ctx context.Context, filters models.QueryFilters, limit int) ([]models.Candidate, error) {
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}

	whereClause, args := buildFilterConditions(filters, 1)
	args = append(args, limit)

	query := `SELECT ` + matchColumns + `, e.embedding
		FROM business_embeddings e
		INNER JOIN businesses b ON b.id = e.business_id` +
		whereClause +
		fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate

	for rows.Next() {
		var c models.Candidate
		if err := scanMatch(rows, &c.Match, &c.Embedding); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}

	return candidates, nil
}

// ListOrphanBusinessIDs returns businesses that still have an embedding record although they are
// no longer verified or have been soft-deleted.
func (r *EmbeddingsRepository) ListOrphanBusinessIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT e.business_id FROM business_embeddings e
		INNER JOIN businesses b ON b.id = e.business_id
		WHERE b.verified = FALSE OR b.deleted_at IS NOT NULL
		ORDER BY e.business_id`)
	if err != nil {
		return nil, fmt.Errorf("list orphan embeddings: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan orphan business id: %w", err)
	}

	return ids, nil
}
