package usecase

import (
	"context"
	"testing"

	"github.com/nutritrack/backend/internal/textnorm"
)

func TestCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("manufacturer tier alone when it satisfies the floor", func(t *testing.T) {
		store := newFakeStore()
		for i := 0; i < 6; i++ {
			store.add("황태포", "용대황태연합단대륙영농조합법인", "")
		}
		index := NewCandidateIndex(store, IndexConfig{})

		got, err := index.Candidates(ctx,
			textnorm.Normalize("황금빛하늘내린황태포5미370g"),
			textnorm.Normalize("용대황태연합단대륙영농조합법인"),
			textnorm.Tokenize("황금빛하늘내린황태포5미370g"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 6 {
			t.Errorf("candidates = %d, want 6", len(got))
		}
		if store.tokenCalls != 0 || store.similarityCalls != 0 {
			t.Errorf("later tiers ran: token=%d similarity=%d", store.tokenCalls, store.similarityCalls)
		}
	})

	t.Run("escalates to token tier below the floor", func(t *testing.T) {
		store := newFakeStore()
		store.add("메가불고기버거", "삼립식품", "")
		store.add("불고기버거 세트", "다른회사", "")
		index := NewCandidateIndex(store, IndexConfig{})

		got, err := index.Candidates(ctx,
			textnorm.Normalize("메가불고기버거"),
			textnorm.Normalize("삼립식품"),
			textnorm.Tokenize("메가불고기버거"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.tokenCalls != 1 {
			t.Errorf("token tier calls = %d, want 1", store.tokenCalls)
		}
		// The manufacturer hit comes first; the similar-name product is
		// appended by a later tier without duplicating it.
		if len(got) == 0 || got[0].ID != 1 {
			t.Fatalf("candidates = %v, want manufacturer match first", got)
		}
		for i, c := range got {
			for j := i + 1; j < len(got); j++ {
				if c.ID == got[j].ID {
					t.Errorf("candidate id %d duplicated", c.ID)
				}
			}
		}
	})

	t.Run("manufacturer tier skipped without manufacturer", func(t *testing.T) {
		store := newFakeStore()
		store.add("신라면", "농심", "")
		index := NewCandidateIndex(store, IndexConfig{})

		_, err := index.Candidates(ctx, textnorm.Normalize("신라면"), "", textnorm.Tokenize("신라면"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.manufacturerCalls != 0 {
			t.Errorf("manufacturer tier ran without a manufacturer")
		}
	})

	t.Run("duplicates from later tiers dropped by id", func(t *testing.T) {
		store := newFakeStore()
		store.add("메가불고기버터갈릭버거", "삼립식품", "")
		index := NewCandidateIndex(store, IndexConfig{})

		got, err := index.Candidates(ctx,
			textnorm.Normalize("메가불고기버터갈릭버거"),
			textnorm.Normalize("삼립식품"),
			textnorm.Tokenize("메가불고기버터갈릭버거"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("candidates = %d, want 1 after dedup", len(got))
		}
	})

	t.Run("tokenless short name falls through to similarity tier", func(t *testing.T) {
		// Scenario: a one-syllable product name yields zero tokens and has
		// no manufacturer; the trigram fallback must still answer.
		store := newFakeStore()
		store.add("콜라 제로", "코카콜라", "")
		index := NewCandidateIndex(store, IndexConfig{})

		got, err := index.Candidates(ctx, textnorm.Normalize("콜"), "", textnorm.Tokenize("콜"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.similarityCalls != 1 {
			t.Errorf("similarity tier calls = %d, want 1", store.similarityCalls)
		}
		// Whether anything clears the floor is the store's business; no
		// candidates is a legitimate answer.
		_ = got
	})

	t.Run("cap bounds the result", func(t *testing.T) {
		store := newFakeStore()
		for i := 0; i < 10; i++ {
			store.add("신라면", "농심", "")
		}
		index := NewCandidateIndex(store, IndexConfig{Cap: 3})

		got, err := index.Candidates(ctx,
			textnorm.Normalize("신라면"),
			textnorm.Normalize("농심"),
			textnorm.Tokenize("신라면"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) > 3 {
			t.Errorf("candidates = %d, want at most 3", len(got))
		}
	})
}
