package domain

import (
	"time"

	"github.com/nutritrack/backend/internal/textnorm"
)

// CanonicalProduct is the catalog's unit of identity. NameNorm,
// ManufacturerNorm and Tokens are derived from Name/Manufacturer and must
// only change through Normalize; at most one product may hold a given
// barcode.
type CanonicalProduct struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	NameNorm         string         `json:"-"`
	Manufacturer     string         `json:"manufacturer,omitempty"`
	ManufacturerNorm string         `json:"-"`
	Tokens           []string       `json:"-"`
	Barcode          string         `json:"barcode,omitempty"`
	ServingSize      string         `json:"servingSize,omitempty"`
	Nutrition        NutritionFacts `json:"nutrition"`
	CreatedAt        time.Time      `json:"createdAt,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt,omitempty"`
}

// Normalize recomputes the derived fields from Name and Manufacturer.
// Must be called by every write path that touches the source fields.
func (p *CanonicalProduct) Normalize() {
	p.NameNorm = textnorm.Normalize(p.Name)
	p.ManufacturerNorm = textnorm.Normalize(p.Manufacturer)
	p.Tokens = textnorm.Tokenize(p.Name)
}

// NutritionFacts holds the numeric nutrition fields. They play no role in
// identity resolution and are carried through unchanged.
type NutritionFacts struct {
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`      // grams
	Fat          float64 `json:"fat"`          // grams
	Carbohydrate float64 `json:"carbohydrate"` // grams
	Sugar        float64 `json:"sugar"`        // grams
	Sodium       float64 `json:"sodium"`       // milligrams
}
