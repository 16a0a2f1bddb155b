package repository

import (
	"fmt"
	"strings"

	"github.com/directorio/hub/internal/models"
)

// matchColumns selects the Match display fields from businesses aliased as b.
// Keep in sync with scanMatch.
const matchColumns = `b.id, b.organization_id, b.name, b.slug,
	COALESCE(b.description, ''), COALESCE(b.address, ''),
	b.province_id, b.city_id,
	COALESCE(b.phone, ''), COALESCE(b.whatsapp, ''),
	b.latitude, b.longitude`

// searchableConditions restrict a search to indexed records of verified, live businesses
// (embeddings aliased as e, businesses as b).
var searchableConditions = []string{
	"e.status = 'INDEXED'",
	"b.verified = TRUE",
	"b.deleted_at IS NULL",
}

// buildFilterConditions builds the WHERE clause for a search over e/b from filters.
// Placeholders are numbered from firstArg; the returned args line up with them.
func buildFilterConditions(filters models.QueryFilters, firstArg int) (whereClause string, args []any) {
	conditions := append([]string(nil), searchableConditions...)
	argCount := firstArg

	if filters.OrganizationID != nil {
		conditions = append(conditions, fmt.Sprintf("b.organization_id = $%d", argCount))
		args = append(args, *filters.OrganizationID)
		argCount++
	}

	if filters.ProvinceID != nil {
		conditions = append(conditions, fmt.Sprintf("b.province_id = $%d", argCount))
		args = append(args, *filters.ProvinceID)
		argCount++
	}

	if filters.CityID != nil {
		conditions = append(conditions, fmt.Sprintf("b.city_id = $%d", argCount))
		args = append(args, *filters.CityID)
		argCount++
	}

	if filters.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM business_categories bc WHERE bc.business_id = b.id AND bc.category_id = $%d)",
			argCount,
		))
		args = append(args, *filters.CategoryID)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMatch scans matchColumns followed by extra destinations.
func scanMatch(row rowScanner, m *models.Match, extra ...any) error {
	dest := []any{
		&m.BusinessID, &m.OrganizationID, &m.Name, &m.Slug,
		&m.Description, &m.Address,
		&m.ProvinceID, &m.CityID,
		&m.Phone, &m.WhatsApp,
		&m.Latitude, &m.Longitude,
	}

	return row.Scan(append(dest, extra...)...)
}
