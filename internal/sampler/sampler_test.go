package sampler

import (
	"fmt"
	"testing"

	"assessly/internal/question"
)

func makePool(n int) []question.Question {
	pool := make([]question.Question, 0, n)
	for i := 0; i < n; i++ {
		cat := "math"
		if i%2 == 1 {
			cat = "physics"
		}
		pool = append(pool, question.Question{
			ID:         fmt.Sprintf("q%d", i),
			CategoryID: cat,
			Options:    []string{"a", "b"},
			Difficulty: question.DifficultyMedium,
		})
	}
	return pool
}

func TestSampleSizeAndDistinct(t *testing.T) {
	pool := makePool(10)
	for _, k := range []int{0, 1, 5, 10, 15} {
		got := Sample(pool, All, k)
		want := min(k, len(pool))
		if len(got) != want {
			t.Fatalf("k=%d: expected %d items, got %d", k, want, len(got))
		}
		seen := make(map[string]bool, len(got))
		for _, q := range got {
			if seen[q.ID] {
				t.Fatalf("k=%d: duplicate question %s", k, q.ID)
			}
			seen[q.ID] = true
		}
	}
}

func TestSampleNegativeCount(t *testing.T) {
	if got := Sample(makePool(3), nil, -1); len(got) != 0 {
		t.Fatalf("expected empty sample, got %d", len(got))
	}
}

func TestSampleEmptyAfterFilter(t *testing.T) {
	got := Sample(makePool(4), InCategories("chemistry"), 3)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil sample, got %v", got)
	}
}

func TestSampleDoesNotReorderPool(t *testing.T) {
	pool := makePool(6)
	_ = Sample(pool, nil, 6, WithSeed(3))
	for i, q := range pool {
		if q.ID != fmt.Sprintf("q%d", i) {
			t.Fatalf("pool reordered at %d: %s", i, q.ID)
		}
	}
}

func TestSampleSeedReproducible(t *testing.T) {
	pool := makePool(20)
	a := Sample(pool, nil, 8, WithSeed(42))
	b := Sample(pool, nil, 8, WithSeed(42))
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("expected same order for same seed at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestPredicates(t *testing.T) {
	pool := []question.Question{
		{ID: "1", CategoryID: "alg", Difficulty: question.DifficultyEasy, Tags: []string{"linear"}},
		{ID: "2", CategoryID: "geo", Difficulty: question.DifficultyHard},
		{ID: "3", CategoryID: "mech", Difficulty: question.DifficultyEasy, Tags: []string{"vectors"}},
	}
	idx, err := question.BuildCategoryIndex([]question.Category{
		{ID: "math", Name: "Math"},
		{ID: "alg", Name: "Algebra", ParentID: "math"},
		{ID: "geo", Name: "Geometry", ParentID: "math"},
		{ID: "mech", Name: "Mechanics"},
	})
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	tests := []struct {
		name string
		pred Predicate
		want int
	}{
		{name: "category tree", pred: InCategoryTree(idx, "math"), want: 2},
		{name: "flat category", pred: InCategories("math"), want: 0},
		{name: "tag", pred: HasAnyTag("LINEAR", "vectors"), want: 2},
		{name: "no tags means all", pred: HasAnyTag(), want: 3},
		{name: "difficulty", pred: WithDifficulty(question.DifficultyEasy), want: 2},
		{name: "and", pred: And(InCategoryTree(idx, "math"), WithDifficulty(question.DifficultyEasy)), want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Sample(pool, tc.pred, 10, WithSeed(1))
			if len(got) != tc.want {
				t.Fatalf("expected %d matches, got %d", tc.want, len(got))
			}
		})
	}
}
