package usecase

import (
	"strings"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

// Score composition. Name similarity carries half the weight, token
// overlap under a third; the manufacturer bonus is additive headroom on
// top rather than a weighted term, and the composite is capped at 1.
const (
	weightNameSimilarity = 0.5
	weightTokenOverlap   = 0.3

	manufacturerExactBonus     = 0.2 // normalized manufacturers equal
	manufacturerSubstringBonus = 0.1 // one contains the other
)

// Scorer computes composite similarity between an external record and
// catalog candidates.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Best returns the single best-scoring candidate with its score and the
// evidence behind it, or nil when the candidate set is empty. Equal
// scores break toward the smaller candidate id so results are
// deterministic.
func (s *Scorer) Best(
	nameNorm, manufacturerNorm string,
	tokens []string,
	candidates []domain.CanonicalProduct,
) (*domain.CanonicalProduct, float64, domain.Evidence) {
	var best *domain.CanonicalProduct
	var bestScore float64
	var bestEvidence domain.Evidence

	for i := range candidates {
		candidate := &candidates[i]
		score, evidence := s.Score(nameNorm, manufacturerNorm, tokens, candidate)

		better := score > bestScore
		if score == bestScore && best != nil && candidate.ID < best.ID {
			better = true
		}
		if best == nil || better {
			best = candidate
			bestScore = score
			bestEvidence = evidence
		}
	}

	return best, bestScore, bestEvidence
}

// Score computes the composite score in [0,1] for one candidate.
func (s *Scorer) Score(
	nameNorm, manufacturerNorm string,
	tokens []string,
	candidate *domain.CanonicalProduct,
) (float64, domain.Evidence) {
	evidence := domain.Evidence{
		NameSimilarity:    textnorm.TrigramSimilarity(nameNorm, candidate.NameNorm),
		TokenOverlap:      jaccard(tokens, candidate.Tokens),
		ManufacturerBonus: manufacturerBonus(manufacturerNorm, candidate.ManufacturerNorm),
	}

	score := weightNameSimilarity*evidence.NameSimilarity +
		weightTokenOverlap*evidence.TokenOverlap +
		evidence.ManufacturerBonus
	if score > 1 {
		score = 1
	}
	return score, evidence
}

// jaccard is intersection over union of the two token sets, 0 when either
// is empty.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, tok := range a {
		setA[tok] = true
	}
	intersection := 0
	union := len(setA)
	seenB := make(map[string]bool, len(b))
	for _, tok := range b {
		if seenB[tok] {
			continue
		}
		seenB[tok] = true
		if setA[tok] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// manufacturerBonus is 0 when either manufacturer is absent or the
// normalized values are unrelated, the substring bonus when one contains
// the other, and the exact bonus when they are equal.
func manufacturerBonus(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return manufacturerExactBonus
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return manufacturerSubstringBonus
	}
	return 0
}
