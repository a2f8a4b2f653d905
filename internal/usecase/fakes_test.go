package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

// fakeStore is an in-memory CanonicalStore honoring the same retrieval and
// conditional-write contracts as the SQLite implementation.
type fakeStore struct {
	mu       sync.Mutex
	products map[int64]*domain.CanonicalProduct
	nextID   int64

	manufacturerCalls int
	tokenCalls        int
	similarityCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[int64]*domain.CanonicalProduct), nextID: 1}
}

func (f *fakeStore) add(name, manufacturer, barcode string) *domain.CanonicalProduct {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &domain.CanonicalProduct{
		ID:           f.nextID,
		Name:         name,
		Manufacturer: manufacturer,
		Barcode:      barcode,
	}
	p.Normalize()
	f.products[p.ID] = p
	f.nextID++
	return p
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*domain.CanonicalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, domain.ErrProductNotFound
}

func (f *fakeStore) FindByBarcode(_ context.Context, barcode string) (*domain.CanonicalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Barcode == barcode && barcode != "" {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (f *fakeStore) FindByManufacturer(_ context.Context, manufacturerNorm string, limit int) ([]domain.CanonicalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manufacturerCalls++
	var out []domain.CanonicalProduct
	for _, p := range f.sorted() {
		if p.ManufacturerNorm == manufacturerNorm && manufacturerNorm != "" {
			out = append(out, *p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindByTokenOverlap(_ context.Context, tokens []string, limit int) ([]domain.CanonicalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	query := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		query[t] = true
	}
	var out []domain.CanonicalProduct
	for _, p := range f.sorted() {
		for _, t := range p.Tokens {
			if query[t] {
				out = append(out, *p)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Tokens) > len(out[j].Tokens)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) FindBySimilarity(_ context.Context, nameNorm string, floor float64, limit int) ([]domain.CanonicalProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similarityCalls++
	type scored struct {
		p   domain.CanonicalProduct
		sim float64
	}
	var matches []scored
	for _, p := range f.sorted() {
		if sim := textnorm.TrigramSimilarity(nameNorm, p.NameNorm); sim > floor {
			matches = append(matches, scored{*p, sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].sim > matches[j].sim })
	var out []domain.CanonicalProduct
	for _, m := range matches {
		out = append(out, m.p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) SetBarcodeIfAbsent(_ context.Context, productID int64, barcode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if target.Barcode != "" {
		return false, nil
	}
	for _, p := range f.products {
		if p.Barcode == barcode {
			return false, nil
		}
	}
	target.Barcode = barcode
	return true, nil
}

func (f *fakeStore) CreateProduct(_ context.Context, product *domain.CanonicalProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	product.Normalize()
	product.ID = f.nextID
	f.nextID++
	copied := *product
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, product *domain.CanonicalProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Normalize()
	copied := *product
	copied.Barcode = existing.Barcode
	f.products[product.ID] = &copied
	return nil
}

func (f *fakeStore) sorted() []*domain.CanonicalProduct {
	ids := make([]int64, 0, len(f.products))
	for id := range f.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*domain.CanonicalProduct, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.products[id])
	}
	return out
}

// fakeAudit records every sink call for assertions.
type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	runID   string
	record  domain.ExternalRecord
	result  domain.MatchResult
	outcome domain.Outcome
}

func (f *fakeAudit) Record(_ context.Context, runID string, record domain.ExternalRecord, result domain.MatchResult, outcome domain.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{runID, record, result, outcome})
	return nil
}

// fakeSource yields a fixed sequence of records and injected fetch
// errors.
type fakeSource struct {
	source domain.Source
	steps  []sourceStep
	pos    int
}

type sourceStep struct {
	record *domain.ExternalRecord
	err    error
}

func recordStep(r domain.ExternalRecord) sourceStep { return sourceStep{record: &r} }
func errorStep(err error) sourceStep                { return sourceStep{err: err} }

func (s *fakeSource) Source() domain.Source { return s.source }

func (s *fakeSource) Next(_ context.Context) (*domain.ExternalRecord, error) {
	if s.pos >= len(s.steps) {
		return nil, nil
	}
	step := s.steps[s.pos]
	s.pos++
	if step.err != nil {
		return nil, step.err
	}
	record := *step.record
	return &record, nil
}
