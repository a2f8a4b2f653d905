package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

// CatalogProduct is one entry of the scraped convenience-store catalog.
// Catalog entries never carry a barcode; resolution attaches them to
// canonical products by name.
type CatalogProduct struct {
	Name         string  `json:"name"`
	Price        string  `json:"price"`
	Manufacturer string  `json:"manufacturer"`
	ServingSize  string  `json:"serving_size"`
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Fat          float64 `json:"fat"`
	Carbohydrate float64 `json:"carbohydrate"`
	Sugar        float64 `json:"sugar"`
	Sodium       float64 `json:"sodium"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// Record maps a catalog entry to the resolution engine's input shape.
func (p CatalogProduct) Record() domain.ExternalRecord {
	return domain.ExternalRecord{
		Source:       domain.SourceStorefront,
		Name:         strings.TrimSpace(p.Name),
		Manufacturer: strings.TrimSpace(p.Manufacturer),
		Price:        p.Price,
		ImageURL:     p.ImageURL,
	}
}

// Nutrition maps a catalog entry's label values.
func (p CatalogProduct) Nutrition() domain.NutritionFacts {
	return domain.NutritionFacts{
		Calories:     p.Calories,
		Protein:      p.Protein,
		Fat:          p.Fat,
		Carbohydrate: p.Carbohydrate,
		Sugar:        p.Sugar,
		Sodium:       p.Sodium,
	}
}

// Loader supplies the catalog dump. The repository owns caching and
// lifecycle; loaders only read.
type Loader interface {
	Load(ctx context.Context) ([]CatalogProduct, error)
}

// Repository holds the storefront catalog behind an explicit
// Load/Reload/Invalidate lifecycle instead of a process-wide mutable
// cache.
type Repository struct {
	loader Loader
	logger *slog.Logger

	mu       sync.RWMutex
	products []CatalogProduct
	loaded   bool
	loadedAt time.Time
}

// NewRepository creates an empty repository over loader. Nothing is
// read until Load.
func NewRepository(loader Loader, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{loader: loader, logger: logger}
}

// Load reads the catalog once. Subsequent calls are no-ops until
// Invalidate or Reload.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Reload(ctx)
}

// Reload re-reads the catalog unconditionally.
func (r *Repository) Reload(ctx context.Context) error {
	products, err := r.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load storefront catalog: %w", err)
	}

	r.mu.Lock()
	r.products = products
	r.loaded = true
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("storefront catalog loaded", "products", len(products))
	return nil
}

// Invalidate drops the cached catalog. The next Load re-reads it.
func (r *Repository) Invalidate() {
	r.mu.Lock()
	r.products = nil
	r.loaded = false
	r.mu.Unlock()
}

// All returns the full catalog, loading it on first use.
func (r *Repository) All(ctx context.Context) ([]CatalogProduct, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CatalogProduct, len(r.products))
	copy(out, r.products)
	return out, nil
}

// Search returns catalog entries whose normalized name contains the
// normalized query, up to limit.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]CatalogProduct, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	queryNorm := textnorm.Normalize(query)
	if queryNorm == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []CatalogProduct
	for _, p := range r.products {
		if strings.Contains(textnorm.Normalize(p.Name), queryNorm) {
			out = append(out, p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Match finds the catalog entry for an externally sourced product name.
// First pass matches on mutual name containment alone; the second pass
// relaxes to a single shared name token but only once the manufacturer
// lines up, catching entries whose names overlap without one containing
// the other.
func (r *Repository) Match(ctx context.Context, name, manufacturer string) (*CatalogProduct, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	nameNorm := textnorm.Normalize(name)
	if nameNorm == "" {
		return nil, domain.ErrProductNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, p := range r.products {
		if containsEither(nameNorm, textnorm.Normalize(p.Name)) {
			return &r.products[i], nil
		}
	}

	if manufacturerNorm := textnorm.Normalize(manufacturer); manufacturerNorm != "" {
		queryTokens := textnorm.Tokenize(name)
		for i, p := range r.products {
			if !containsEither(manufacturerNorm, textnorm.Normalize(p.Manufacturer)) {
				continue
			}
			if sharesToken(queryTokens, textnorm.Tokenize(p.Name)) {
				return &r.products[i], nil
			}
		}
	}

	return nil, domain.ErrProductNotFound
}

// RecordSource exposes the catalog to the batch runner.
func (r *Repository) RecordSource(ctx context.Context) (domain.RecordSource, error) {
	products, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	return &catalogSource{products: products}, nil
}

type catalogSource struct {
	products []CatalogProduct
	pos      int
}

func (s *catalogSource) Source() domain.Source {
	return domain.SourceStorefront
}

func (s *catalogSource) Next(_ context.Context) (*domain.ExternalRecord, error) {
	if s.pos >= len(s.products) {
		return nil, nil
	}
	record := s.products[s.pos].Record()
	s.pos++
	return &record, nil
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sharesToken(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	for _, tok := range b {
		if set[tok] {
			return true
		}
	}
	return false
}
