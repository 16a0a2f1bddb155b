// Package document renders a business into the canonical text that is embedded and checksummed.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/directorio/hub/internal/models"
)

const missingCity = "n/a"

// Build returns the newline-joined "key: value" document for b. Field order is fixed and
// category/feature names are sorted, so equal businesses always produce equal documents.
func Build(b *models.Business) string {
	city := strings.TrimSpace(b.CityName)
	if city == "" {
		city = missingCity
	}

	lines := []string{
		"name: " + clean(b.Name),
		"slug: " + clean(b.Slug),
		"description: " + clean(b.Description),
		"address: " + clean(b.Address),
		"province: " + clean(b.ProvinceName),
		"city: " + city,
		"categories: " + joinNames(b.Categories),
		"features: " + joinNames(b.Features),
		"phone: " + clean(b.Phone),
		"whatsapp: " + clean(b.WhatsApp),
	}

	return strings.Join(lines, "\n")
}

// Checksum returns the SHA-256 hex digest of content.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

func joinNames(refs []models.NamedRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if n := clean(r.Name); n != "" {
			names = append(names, n)
		}
	}

	slices.Sort(names)

	return strings.Join(names, ", ")
}

// clean trims the value and folds embedded newlines so every field stays on its own line.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
