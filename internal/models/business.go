// Package models defines the business, embedding and retrieval types shared across layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NamedRef is a related entity (category, feature) reduced to what indexing needs.
type NamedRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Business is a business listing loaded with the relations that feed its search document.
type Business struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    string     `json:"description"`
	Address        string     `json:"address"`
	Phone          string     `json:"phone"`
	WhatsApp       string     `json:"whatsapp"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	ProvinceID     uuid.UUID  `json:"province_id"`
	ProvinceName   string     `json:"province_name"`
	CityID         *uuid.UUID `json:"city_id,omitempty"`
	CityName       string     `json:"city_name,omitempty"`
	Categories     []NamedRef `json:"categories"`
	Features       []NamedRef `json:"features"`
	Verified       bool       `json:"verified"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	LastIndexedAt  *time.Time `json:"last_indexed_at,omitempty"`
}

// Indexable reports whether the business should have an embedding record:
// verified and not soft-deleted.
func (b *Business) Indexable() bool {
	return b != nil && b.Verified && b.DeletedAt == nil
}
