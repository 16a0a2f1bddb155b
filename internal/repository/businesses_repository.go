package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/directorio/hub/internal/huberrors"
	"github.com/directorio/hub/internal/models"
)

// BusinessesRepository reads business graphs for indexing and stamps indexing progress.
type BusinessesRepository struct {
	db *pgxpool.Pool
}

// NewBusinessesRepository creates a new businesses repository.
func NewBusinessesRepository(db *pgxpool.Pool) *BusinessesRepository {
	return &BusinessesRepository{db: db}
}

// GetForIndexing loads a business with its province, city, categories and features.
// Soft-deleted and unverified businesses are returned as-is; callers decide with Business.Indexable.
// Returns huberrors.ErrNotFound when no business row exists.
func (r *BusinessesRepository) GetForIndexing(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var b models.Business

	err := r.db.QueryRow(ctx, `
		SELECT b.id, b.organization_id, b.name, b.slug,
			COALESCE(b.description, ''), COALESCE(b.address, ''),
			COALESCE(b.phone, ''), COALESCE(b.whatsapp, ''),
			b.latitude, b.longitude,
			b.province_id, COALESCE(p.name, ''),
			b.city_id, COALESCE(c.name, ''),
			b.verified, b.deleted_at, b.last_indexed_at
		FROM businesses b
		LEFT JOIN provinces p ON p.id = b.province_id
		LEFT JOIN cities c ON c.id = b.city_id
		WHERE b.id = $1`, id,
	).Scan(
		&b.ID, &b.OrganizationID, &b.Name, &b.Slug,
		&b.Description, &b.Address,
		&b.Phone, &b.WhatsApp,
		&b.Latitude, &b.Longitude,
		&b.ProvinceID, &b.ProvinceName,
		&b.CityID, &b.CityName,
		&b.Verified, &b.DeletedAt, &b.LastIndexedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NotFound("business", id)
		}

		return nil, fmt.Errorf("get business for indexing: %w", err)
	}

	b.Categories, err = r.listNamedRefs(ctx, `
		SELECT c.id, c.name FROM business_categories bc
		INNER JOIN categories c ON c.id = bc.category_id
		WHERE bc.business_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list business categories: %w", err)
	}

	b.Features, err = r.listNamedRefs(ctx, `
		SELECT f.id, f.name FROM business_features bf
		INNER JOIN features f ON f.id = bf.feature_id
		WHERE bf.business_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list business features: %w", err)
	}

	return &b, nil
}

func (r *BusinessesRepository) listNamedRefs(ctx context.Context, query string, id uuid.UUID) ([]models.NamedRef, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}

	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.NamedRef, error) {
		var ref models.NamedRef
		err := row.Scan(&ref.ID, &ref.Name)

		return ref, err
	})
	if err != nil {
		return nil, err
	}

	return refs, nil
}

// MarkIndexed stamps last_indexed_at. A missing business is not an error.
func (r *BusinessesRepository) MarkIndexed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE businesses SET last_indexed_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("mark business indexed: %w", err)
	}

	return nil
}

// ListIndexableIDs returns up to limit ids of verified, live businesses ordered by id and strictly
// greater than after (keyset pagination; pass uuid.Nil for the first page).
func (r *BusinessesRepository) ListIndexableIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM businesses
		WHERE verified = TRUE AND deleted_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list indexable business ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan business id: %w", err)
	}

	return ids, nil
}
