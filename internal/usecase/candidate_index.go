// Package usecase implements the cross-source product identity resolution
// engine: bounded candidate retrieval, composite similarity scoring,
// confidence classification, and idempotent reconciliation of barcode
// matches against the canonical catalog.
package usecase

import (
	"context"
	"fmt"

	"github.com/nutritrack/backend/internal/domain"
)

// Candidate retrieval defaults. The floor is the point at which a tier is
// considered to have found enough and escalation stops; the cap bounds
// scorer cost per record regardless of catalog size.
const (
	defaultCandidateCap    = 50
	defaultCandidateFloor  = 5
	defaultSimilarityFloor = 0.3
)

// IndexConfig holds tuning knobs for candidate retrieval.
type IndexConfig struct {
	Cap             int
	Floor           int
	SimilarityFloor float64
}

// CandidateIndex retrieves a bounded candidate set from the canonical
// store without ever scanning the whole catalog. Retrieval escalates
// through three tiers: exact normalized manufacturer, token overlap, and
// trigram-similar names as the last resort for records whose tokenization
// yields little.
type CandidateIndex struct {
	store           domain.CanonicalStore
	cap             int
	floor           int
	similarityFloor float64
}

// NewCandidateIndex creates a candidate index over the given store.
func NewCandidateIndex(store domain.CanonicalStore, config IndexConfig) *CandidateIndex {
	capN := config.Cap
	if capN <= 0 {
		capN = defaultCandidateCap
	}
	floor := config.Floor
	if floor <= 0 {
		floor = defaultCandidateFloor
	}
	simFloor := config.SimilarityFloor
	if simFloor <= 0 {
		simFloor = defaultSimilarityFloor
	}
	return &CandidateIndex{
		store:           store,
		cap:             capN,
		floor:           floor,
		similarityFloor: simFloor,
	}
}

// Candidates returns at most Cap canonical products worth scoring against
// the query. Tiers that lack their query input (no manufacturer, no
// tokens) are skipped; later tiers run only while the candidate count is
// below the floor. Duplicates from later tiers are dropped by id.
func (ci *CandidateIndex) Candidates(
	ctx context.Context,
	nameNorm, manufacturerNorm string,
	tokens []string,
) ([]domain.CanonicalProduct, error) {
	var candidates []domain.CanonicalProduct
	seen := make(map[int64]bool)

	add := func(products []domain.CanonicalProduct) {
		for _, p := range products {
			if len(candidates) >= ci.cap {
				return
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			candidates = append(candidates, p)
		}
	}

	if manufacturerNorm != "" {
		matches, err := ci.store.FindByManufacturer(ctx, manufacturerNorm, ci.cap)
		if err != nil {
			return nil, fmt.Errorf("manufacturer tier: %w", err)
		}
		add(matches)
	}

	if len(candidates) < ci.floor && len(tokens) > 0 {
		matches, err := ci.store.FindByTokenOverlap(ctx, tokens, ci.cap)
		if err != nil {
			return nil, fmt.Errorf("token tier: %w", err)
		}
		add(matches)
	}

	if len(candidates) < ci.floor && nameNorm != "" {
		matches, err := ci.store.FindBySimilarity(ctx, nameNorm, ci.similarityFloor, ci.cap)
		if err != nil {
			return nil, fmt.Errorf("similarity tier: %w", err)
		}
		add(matches)
	}

	return candidates, nil
}
