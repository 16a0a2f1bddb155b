package document

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/directorio/hub/internal/models"
)

func colmadoLuz() *models.Business {
	return &models.Business{
		ID:           uuid.MustParse("018f0000-0000-7000-8000-000000000001"),
		Name:         "Colmado Luz",
		Slug:         "colmado-luz",
		Description:  "Colmado de barrio con delivery",
		Address:      "Calle 5 #12",
		ProvinceName: "Santiago",
		CityName:     "Santiago de los Caballeros",
		Categories:   []models.NamedRef{{Name: "Colmado"}, {Name: "Bebidas"}},
		Features:     []models.NamedRef{{Name: "Delivery"}},
		Phone:        "809-555-0101",
		WhatsApp:     "8095550101",
		Verified:     true,
	}
}

func TestBuild(t *testing.T) {
	got := Build(colmadoLuz())

	want := strings.Join([]string{
		"name: Colmado Luz",
		"slug: colmado-luz",
		"description: Colmado de barrio con delivery",
		"address: Calle 5 #12",
		"province: Santiago",
		"city: Santiago de los Caballeros",
		"categories: Bebidas, Colmado",
		"features: Delivery",
		"phone: 809-555-0101",
		"whatsapp: 8095550101",
	}, "\n")

	assert.Equal(t, want, got)
}

func TestBuild_missingCityAndEmptyRelations(t *testing.T) {
	b := colmadoLuz()
	b.CityName = ""
	b.Categories = nil
	b.Features = nil
	b.WhatsApp = ""

	got := Build(b)

	assert.Contains(t, got, "\ncity: n/a\n")
	assert.Contains(t, got, "\ncategories: \n")
	assert.Contains(t, got, "\nfeatures: \n")
	assert.True(t, strings.HasSuffix(got, "whatsapp: "))
}

func TestBuild_stableAcrossRelationOrder(t *testing.T) {
	a := colmadoLuz()
	b := colmadoLuz()
	b.Categories = []models.NamedRef{{Name: "Bebidas"}, {Name: "Colmado"}}

	assert.Equal(t, Build(a), Build(b))
	assert.Equal(t, Checksum(Build(a)), Checksum(Build(b)))
}

func TestBuild_multilineDescriptionStaysOnOneLine(t *testing.T) {
	b := colmadoLuz()
	b.Description = "abierto\n24 horas"

	assert.Len(t, strings.Split(Build(b), "\n"), 10)
	assert.Contains(t, Build(b), "description: abierto 24 horas")
}

func TestChecksum_sensitiveToEveryField(t *testing.T) {
	base := Checksum(Build(colmadoLuz()))

	mutations := map[string]func(*models.Business){
		"name":        func(b *models.Business) { b.Name = "Colmado Luz II" },
		"slug":        func(b *models.Business) { b.Slug = "colmado-luz-2" },
		"description": func(b *models.Business) { b.Description = "otro" },
		"address":     func(b *models.Business) { b.Address = "Calle 6" },
		"province":    func(b *models.Business) { b.ProvinceName = "La Vega" },
		"city":        func(b *models.Business) { b.CityName = "Tamboril" },
		"categories":  func(b *models.Business) { b.Categories = append(b.Categories, models.NamedRef{Name: "Pica Pollo"}) },
		"features":    func(b *models.Business) { b.Features = nil },
		"phone":       func(b *models.Business) { b.Phone = "809-555-0199" },
		"whatsapp":    func(b *models.Business) { b.WhatsApp = "8095550199" },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			b := colmadoLuz()
			mutate(b)
			assert.NotEqual(t, base, Checksum(Build(b)))
		})
	}
}

func TestChecksum(t *testing.T) {
	// sha256("") is a well-known constant.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(""))
	assert.Len(t, Checksum("name: Colmado Luz"), 64)
}
