package usecase

import "github.com/nutritrack/backend/internal/domain"

// Default tier thresholds. Policy knobs, not derived quantities: each
// source type can run its own pair, since an authoritative registry
// warrants a different trust level than a crowd-sourced database.
const (
	DefaultAutoThreshold   = 0.85
	DefaultReviewThreshold = 0.65
)

// Thresholds is one source's tier policy. Scores at or above Auto
// classify AUTO; at or above Review but below Auto, REVIEW; below Review,
// FAIL. Boundary values belong to the higher tier.
type Thresholds struct {
	Auto   float64
	Review float64
}

// Classifier maps a composite score to a confidence tier under
// per-source threshold policy.
type Classifier struct {
	defaults Thresholds
	bySource map[domain.Source]Thresholds
}

// NewClassifier creates a classifier with the given default thresholds
// and per-source overrides. Zero-valued defaults fall back to the
// package defaults.
func NewClassifier(defaults Thresholds, bySource map[domain.Source]Thresholds) *Classifier {
	if defaults.Auto <= 0 {
		defaults.Auto = DefaultAutoThreshold
	}
	if defaults.Review <= 0 {
		defaults.Review = DefaultReviewThreshold
	}
	return &Classifier{defaults: defaults, bySource: bySource}
}

// ThresholdsFor returns the effective thresholds for a source.
func (c *Classifier) ThresholdsFor(source domain.Source) Thresholds {
	if t, ok := c.bySource[source]; ok {
		if t.Auto <= 0 {
			t.Auto = c.defaults.Auto
		}
		if t.Review <= 0 {
			t.Review = c.defaults.Review
		}
		return t
	}
	return c.defaults
}

// Classify maps a score to a tier. Pure: the same score and configuration
// always produce the same tier.
func (c *Classifier) Classify(source domain.Source, score float64) domain.Tier {
	t := c.ThresholdsFor(source)
	switch {
	case score >= t.Auto:
		return domain.TierAuto
	case score >= t.Review:
		return domain.TierReview
	default:
		return domain.TierFail
	}
}
