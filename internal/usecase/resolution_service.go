package usecase

import (
	"context"
	"log/slog"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

// ResolutionService runs one external record through the full decision
// pipeline: normalize -> tokenize -> candidate retrieval -> scoring ->
// classification. It never writes; applying AUTO decisions is the
// Reconciler's job.
type ResolutionService struct {
	index      *CandidateIndex
	scorer     *Scorer
	classifier *Classifier
	logger     *slog.Logger
}

// NewResolutionService wires the engine components together.
func NewResolutionService(index *CandidateIndex, scorer *Scorer, classifier *Classifier, logger *slog.Logger) *ResolutionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolutionService{
		index:      index,
		scorer:     scorer,
		classifier: classifier,
		logger:     logger,
	}
}

// Resolve produces the MatchResult for one record. A record without a
// name is rejected before scoring with ErrMalformedRecord. An empty
// candidate set classifies FAIL rather than erroring; only store failures
// propagate as errors.
func (s *ResolutionService) Resolve(ctx context.Context, record *domain.ExternalRecord) (domain.MatchResult, error) {
	if record == nil || record.Name == "" {
		return domain.MatchResult{
			Tier:        domain.TierFail,
			FailedStage: domain.StateFetched,
		}, domain.ErrMalformedRecord
	}

	nameNorm := textnorm.Normalize(record.Name)
	manufacturerNorm := textnorm.Normalize(record.Manufacturer)
	tokens := textnorm.Tokenize(record.Name)

	if nameNorm == "" {
		return domain.MatchResult{
			Barcode:     record.Barcode,
			Tier:        domain.TierFail,
			FailedStage: domain.StateNormalized,
		}, domain.ErrMalformedRecord
	}

	candidates, err := s.index.Candidates(ctx, nameNorm, manufacturerNorm, tokens)
	if err != nil {
		return domain.MatchResult{
			Barcode:     record.Barcode,
			Tier:        domain.TierFail,
			FailedStage: domain.StateCandidatesRetrieved,
		}, err
	}

	if len(candidates) == 0 {
		s.logger.Debug("no candidates", "source", record.Source, "name", record.Name)
		return domain.MatchResult{
			Barcode:     record.Barcode,
			Tier:        domain.TierFail,
			FailedStage: domain.StateCandidatesRetrieved,
		}, nil
	}

	best, score, evidence := s.scorer.Best(nameNorm, manufacturerNorm, tokens, candidates)
	tier := s.classifier.Classify(record.Source, score)

	result := domain.MatchResult{
		Barcode:  record.Barcode,
		Score:    score,
		Tier:     tier,
		Evidence: evidence,
	}
	// FAIL never names a product; AUTO and REVIEW carry the best match.
	if tier != domain.TierFail && best != nil {
		result.ProductID = best.ID
		result.ProductName = best.Name
	}

	s.logger.Debug("resolved record",
		"source", record.Source,
		"name", record.Name,
		"candidates", len(candidates),
		"score", score,
		"tier", tier)

	return result, nil
}
