package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/directorio/hub/internal/models"
	vec "github.com/directorio/hub/pkg/embeddings"
)

// VectorProjectionRepository reads and writes the pgvector projection of embedding records.
// The table has (embedding_id uuid primary key references business_embeddings(id), embedding vector).
type VectorProjectionRepository struct {
	db    *pgxpool.Pool
	table string
	ident string
}

// NewVectorProjectionRepository creates a repository over the given projection table name.
// The name is quoted as an identifier; it is never interpolated raw.
func NewVectorProjectionRepository(db *pgxpool.Pool, table string) *VectorProjectionRepository {
	return &VectorProjectionRepository{
		db:    db,
		table: table,
		ident: pgx.Identifier{table}.Sanitize(),
	}
}

// Probe reports whether the vector extension is installed and the projection table exists.
func (r *VectorProjectionRepository) Probe(ctx context.Context) (bool, error) {
	var ok bool

	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')
			AND to_regclass($1) IS NOT NULL`, r.ident,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("probe vector projection: %w", err)
	}

	return ok, nil
}

// Upsert writes the projection of one embedding record.
func (r *VectorProjectionRepository) Upsert(ctx context.Context, embeddingID uuid.UUID, embedding []float64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO `+r.ident+` (embedding_id, embedding)
		VALUES ($1, $2::vector)
		ON CONFLICT (embedding_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		embeddingID, pgvector.NewVector(vec.ToFloat32(embedding)),
	)
	if err != nil {
		return fmt.Errorf("upsert vector projection: %w", err)
	}

	return nil
}

// Delete removes the projection of one embedding record. Deleting an absent row is not an error.
func (r *VectorProjectionRepository) Delete(ctx context.Context, embeddingID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM `+r.ident+` WHERE embedding_id = $1`, embeddingID); err != nil {
		return fmt.Errorf("delete vector projection: %w", err)
	}

	return nil
}

// Nearest returns the limit closest indexed businesses to query by cosine distance (<=>),
// with score = 1 - distance, ordered by ascending distance.
func (r *VectorProjectionRepository) Nearest(
	ctx context.Context, query []float64, filters models.QueryFilters, limit int,
) ([]models.Match, error) {
	whereClause, args := buildFilterConditions(filters, 2)
	args = append([]any{pgvector.NewVector(vec.ToFloat32(query))}, args...)
	args = append(args, limit)

	sql := `SELECT ` + matchColumns + `, 1 - (v.embedding <=> $1::vector) AS score
		FROM ` + r.ident + ` v
		INNER JOIN business_embeddings e ON e.id = v.embedding_id
		INNER JOIN businesses b ON b.id = e.business_id` +
		whereClause +
		` ORDER BY v.embedding <=> $1::vector` +
		fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest businesses: %w", err)
	}
	defer rows.Close()

	var matches []models.Match

	for rows.Next() {
		var m models.Match
		if err := scanMatch(rows, &m, &m.Score); err != nil {
			return nil, fmt.Errorf("scan nearest business: %w", err)
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest: %w", err)
	}

	return matches, nil
}

// Table returns the unquoted projection table name.
func (r *VectorProjectionRepository) Table() string {
	return r.table
}
