package usecase

import (
	"testing"

	"github.com/nutritrack/backend/internal/domain"
)

func TestClassify(t *testing.T) {
	classifier := NewClassifier(Thresholds{Auto: 0.85, Review: 0.65}, nil)

	tests := []struct {
		name  string
		score float64
		want  domain.Tier
	}{
		{"well above auto", 0.95, domain.TierAuto},
		{"exactly auto boundary", 0.85, domain.TierAuto},
		{"just below auto", 0.8499, domain.TierReview},
		{"exactly review boundary", 0.65, domain.TierReview},
		{"just below review", 0.6499, domain.TierFail},
		{"zero", 0, domain.TierFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(domain.SourceRegistry, tt.score); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestClassifierDefaults(t *testing.T) {
	classifier := NewClassifier(Thresholds{}, nil)
	got := classifier.ThresholdsFor(domain.SourceRegistry)
	if got.Auto != DefaultAutoThreshold || got.Review != DefaultReviewThreshold {
		t.Errorf("ThresholdsFor = %+v, want defaults %v/%v", got, DefaultAutoThreshold, DefaultReviewThreshold)
	}
}

func TestClassifierPerSourceOverrides(t *testing.T) {
	classifier := NewClassifier(
		Thresholds{Auto: 0.85, Review: 0.65},
		map[domain.Source]Thresholds{
			domain.SourceOpenFoodFacts: {Auto: 0.80},
		},
	)

	t.Run("override applies to its source", func(t *testing.T) {
		if got := classifier.Classify(domain.SourceOpenFoodFacts, 0.82); got != domain.TierAuto {
			t.Errorf("Classify(openfoodfacts, 0.82) = %v, want AUTO", got)
		}
	})

	t.Run("partial override inherits the default review threshold", func(t *testing.T) {
		got := classifier.ThresholdsFor(domain.SourceOpenFoodFacts)
		if got.Review != 0.65 {
			t.Errorf("Review = %v, want 0.65", got.Review)
		}
	})

	t.Run("other sources keep defaults", func(t *testing.T) {
		if got := classifier.Classify(domain.SourceRegistry, 0.82); got != domain.TierReview {
			t.Errorf("Classify(registry, 0.82) = %v, want REVIEW", got)
		}
	})
}

func TestClassifyReproducible(t *testing.T) {
	// Classification is a pure function of score and configured
	// thresholds: the same record score classifies independently under
	// each configuration, in any order.
	lenient := NewClassifier(Thresholds{Auto: 0.85, Review: 0.65}, nil)
	strict := NewClassifier(Thresholds{Auto: 0.95, Review: 0.90}, nil)

	score := 0.70
	if got := lenient.Classify(domain.SourceRegistry, score); got != domain.TierReview {
		t.Errorf("lenient = %v, want REVIEW", got)
	}
	if got := strict.Classify(domain.SourceRegistry, score); got != domain.TierFail {
		t.Errorf("strict = %v, want FAIL", got)
	}
	// Same inputs again: identical answers.
	if got := lenient.Classify(domain.SourceRegistry, score); got != domain.TierReview {
		t.Errorf("lenient reclassify = %v, want REVIEW", got)
	}
}
