package usecase

import (
	"testing"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

func TestTrigramSimilarityProperties(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		for _, s := range []string{"신라면", "whole milk", "메가불고기버터갈릭버거"} {
			if sim := textnorm.TrigramSimilarity(s, s); sim != 1.0 {
				t.Errorf("TrigramSimilarity(%q, %q) = %v, want 1.0", s, s, sim)
			}
		}
	})

	t.Run("symmetry", func(t *testing.T) {
		pairs := [][2]string{
			{"신라면", "진라면"},
			{"불고기버거", "치즈버거"},
			{"coca cola", "pepsi cola"},
		}
		for _, pair := range pairs {
			ab := textnorm.TrigramSimilarity(pair[0], pair[1])
			ba := textnorm.TrigramSimilarity(pair[1], pair[0])
			if ab != ba {
				t.Errorf("similarity not symmetric for %v: %v vs %v", pair, ab, ba)
			}
		}
	})

	t.Run("empty operands", func(t *testing.T) {
		if sim := textnorm.TrigramSimilarity("", "신라면"); sim != 0 {
			t.Errorf("similarity with empty operand = %v, want 0", sim)
		}
	})
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical sets", []string{"불고기", "버거"}, []string{"불고기", "버거"}, 1.0},
		{"half overlap", []string{"불고기", "버거"}, []string{"불고기", "피자"}, 1.0 / 3.0},
		{"disjoint", []string{"불고기"}, []string{"피자"}, 0},
		{"empty first", nil, []string{"피자"}, 0},
		{"empty second", []string{"불고기"}, nil, 0},
		{"both empty", nil, nil, 0},
		{"duplicates collapse", []string{"버거", "버거"}, []string{"버거"}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestManufacturerBonus(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact match", "삼립식품", "삼립식품", manufacturerExactBonus},
		{"substring one way", "삼립", "삼립식품", manufacturerSubstringBonus},
		{"substring other way", "삼립식품", "삼립", manufacturerSubstringBonus},
		{"unrelated", "농심", "오뚜기", 0},
		{"first absent", "", "농심", 0},
		{"second absent", "농심", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := manufacturerBonus(tt.a, tt.b); got != tt.want {
				t.Errorf("manufacturerBonus(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	scorer := NewScorer()

	t.Run("identical product scores 1.0", func(t *testing.T) {
		candidate := &domain.CanonicalProduct{Name: "메가불고기버터갈릭버거", Manufacturer: "삼립식품"}
		candidate.Normalize()
		score, _ := scorer.Score(candidate.NameNorm, candidate.ManufacturerNorm, candidate.Tokens, candidate)
		if score != 1.0 {
			t.Errorf("score = %v, want 1.0", score)
		}
	})

	t.Run("score never exceeds 1.0", func(t *testing.T) {
		candidate := &domain.CanonicalProduct{Name: "신라면", Manufacturer: "농심"}
		candidate.Normalize()
		score, _ := scorer.Score(candidate.NameNorm, candidate.ManufacturerNorm, candidate.Tokens, candidate)
		if score > 1.0 {
			t.Errorf("score = %v, exceeds 1.0", score)
		}
	})

	t.Run("evidence carries the individual signals", func(t *testing.T) {
		candidate := &domain.CanonicalProduct{Name: "메가불고기버터갈릭버거", Manufacturer: "삼립식품"}
		candidate.Normalize()
		_, evidence := scorer.Score(candidate.NameNorm, "삼립", candidate.Tokens, candidate)
		if evidence.NameSimilarity != 1.0 {
			t.Errorf("NameSimilarity = %v, want 1.0", evidence.NameSimilarity)
		}
		if evidence.TokenOverlap != 1.0 {
			t.Errorf("TokenOverlap = %v, want 1.0", evidence.TokenOverlap)
		}
		if evidence.ManufacturerBonus != manufacturerSubstringBonus {
			t.Errorf("ManufacturerBonus = %v, want %v", evidence.ManufacturerBonus, manufacturerSubstringBonus)
		}
	})
}

func TestScoreMonotonicInTokenOverlap(t *testing.T) {
	// With name similarity and manufacturer held equal, more token
	// overlap never lowers the composite score.
	scorer := NewScorer()
	candidate := &domain.CanonicalProduct{
		NameNorm: "동일한이름",
		Tokens:   []string{"불고기", "버터", "갈릭", "버거"},
	}

	prev := -1.0
	queries := [][]string{
		{"피자"},
		{"불고기", "피자"},
		{"불고기", "버터", "피자"},
		{"불고기", "버터", "갈릭", "피자"},
	}
	for _, tokens := range queries {
		score, _ := scorer.Score("동일한이름", "", tokens, candidate)
		if score < prev {
			t.Fatalf("score decreased from %v to %v with more token overlap (%v)", prev, score, tokens)
		}
		prev = score
	}
}

func TestBest(t *testing.T) {
	scorer := NewScorer()

	t.Run("empty candidate set", func(t *testing.T) {
		best, score, _ := scorer.Best("이름", "", nil, nil)
		if best != nil || score != 0 {
			t.Errorf("Best on empty set = (%v, %v), want (nil, 0)", best, score)
		}
	})

	t.Run("picks highest score", func(t *testing.T) {
		candidates := []domain.CanonicalProduct{
			{ID: 1, Name: "참치김밥"},
			{ID: 2, Name: "신라면"},
		}
		for i := range candidates {
			candidates[i].Normalize()
		}
		best, _, _ := scorer.Best(textnorm.Normalize("신라면"), "", textnorm.Tokenize("신라면"), candidates)
		if best == nil || best.ID != 2 {
			t.Fatalf("Best picked %v, want id 2", best)
		}
	})

	t.Run("ties break toward smaller id", func(t *testing.T) {
		candidates := []domain.CanonicalProduct{
			{ID: 7, Name: "신라면"},
			{ID: 3, Name: "신라면"},
		}
		for i := range candidates {
			candidates[i].Normalize()
		}
		best, _, _ := scorer.Best(textnorm.Normalize("신라면"), "", textnorm.Tokenize("신라면"), candidates)
		if best == nil || best.ID != 3 {
			t.Fatalf("Best picked %v, want id 3 on tie", best)
		}
	})
}
