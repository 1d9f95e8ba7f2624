package question

import (
	"context"
	"errors"
	"testing"
)

func TestCreateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr bool
		field   string
	}{
		{name: "valid", in: Input{ID: "q1", Prompt: " 2+2? ", Options: []string{"3", " 4 ", "5", "6"}, CorrectIndex: 1}},
		{name: "two options enough", in: Input{ID: "q1", Prompt: "Sky blue?", Options: []string{"yes", "no"}}},
		{name: "missing id", in: Input{Prompt: "p", Options: []string{"a", "b"}}, wantErr: true, field: "id"},
		{name: "blank prompt", in: Input{ID: "q1", Prompt: "   ", Options: []string{"a", "b"}}, wantErr: true, field: "prompt"},
		{name: "single option", in: Input{ID: "q1", Prompt: "p", Options: []string{"a"}}, wantErr: true, field: "options"},
		{name: "blank option", in: Input{ID: "q1", Prompt: "p", Options: []string{"a", "  "}}, wantErr: true, field: "options"},
		{name: "negative index", in: Input{ID: "q1", Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: -1}, wantErr: true, field: "correct_index"},
		{name: "index past end", in: Input{ID: "q1", Prompt: "p", Options: []string{"a", "b"}, CorrectIndex: 2}, wantErr: true, field: "correct_index"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := CreateQuestion(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidQuestion) {
					t.Fatalf("expected ErrInvalidQuestion, got %v", err)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != tc.field {
					t.Fatalf("expected field %q, got %v", tc.field, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) || len(q.Options) < 2 {
				t.Fatalf("construction invariant broken: %+v", q)
			}
		})
	}
}

func TestCreateQuestionNormalizes(t *testing.T) {
	opts := []string{" a ", "b"}
	q, err := CreateQuestion(Input{ID: "q1", Prompt: " p ", Options: opts, Difficulty: "HARD", Tags: []string{"Alg", "alg", " "}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if q.Prompt != "p" || q.Options[0] != "a" {
		t.Fatalf("expected trimmed fields, got %+v", q)
	}
	if q.Difficulty != DifficultyHard {
		t.Fatalf("expected hard, got %s", q.Difficulty)
	}
	if len(q.Tags) != 1 || q.Tags[0] != "alg" {
		t.Fatalf("expected deduplicated tags, got %v", q.Tags)
	}
	opts[1] = "changed"
	if q.Options[1] != "b" {
		t.Fatalf("question must not share the caller's options slice")
	}
}

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"easy":    DifficultyEasy,
		" Hard ":  DifficultyHard,
		"medium":  DifficultyMedium,
		"":        DifficultyMedium,
		"extreme": DifficultyMedium,
	}
	for in, want := range cases {
		if got := ParseDifficulty(in); got != want {
			t.Fatalf("ParseDifficulty(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestCategoryIndex(t *testing.T) {
	idx := NewCategoryIndex()
	math, _ := NewCategory("math", "Math", "sci", "")
	alg, _ := NewCategory("alg", "Algebra", "sci", "math")
	geo, _ := NewCategory("geo", "Geometry", "sci", "math")

	if err := idx.Add(alg); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent before parent exists, got %v", err)
	}
	for _, c := range []Category{math, alg, geo} {
		if err := idx.Add(c); err != nil {
			t.Fatalf("add %s: %v", c.ID, err)
		}
	}
	if err := idx.Add(math); !errors.Is(err, ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}

	sub := idx.Subtree("math")
	if len(sub) != 3 || sub[0] != "math" {
		t.Fatalf("unexpected subtree: %v", sub)
	}
	if got := idx.Subtree("alg"); len(got) != 1 {
		t.Fatalf("expected leaf subtree of 1, got %v", got)
	}
	if got := idx.Subtree("nope"); got != nil {
		t.Fatalf("expected nil for unknown id, got %v", got)
	}
}

func TestNewCategorySelfParent(t *testing.T) {
	if _, err := NewCategory("a", "A", "", "a"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

type memRepo struct {
	questions  map[string]Question
	categories []Category
}

func (m *memRepo) SaveQuestions(ctx context.Context, items []Question) error {
	if m.questions == nil {
		m.questions = map[string]Question{}
	}
	for _, q := range items {
		m.questions[q.ID] = q
	}
	return nil
}

func (m *memRepo) ListQuestions(ctx context.Context, f Filter) ([]Question, error) {
	out := make([]Question, 0, len(m.questions))
	for _, q := range m.questions {
		out = append(out, q)
	}
	return out, nil
}

func (m *memRepo) SaveCategory(ctx context.Context, c Category) error {
	m.categories = append(m.categories, c)
	return nil
}

func (m *memRepo) ListCategories(ctx context.Context) ([]Category, error) {
	return m.categories, nil
}

func TestServiceReplaceQuestionByID(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.ReplaceQuestion(ctx, Input{ID: "q1", Prompt: "old", Options: []string{"a", "b"}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := svc.ReplaceQuestion(ctx, Input{ID: "q1", Prompt: "new", Options: []string{"a", "b"}, CorrectIndex: 1}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(repo.questions) != 1 || repo.questions["q1"].Prompt != "new" {
		t.Fatalf("expected replaced record, got %+v", repo.questions)
	}
}

func TestServiceCreateCategoryRequiresParent(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{ID: "alg", Name: "Algebra", ParentID: "math"}); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{ID: "math", Name: "Math"}); err != nil {
		t.Fatalf("create root: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{ID: "alg", Name: "Algebra", ParentID: "math"}); err != nil {
		t.Fatalf("create child: %v", err)
	}
	if len(repo.categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(repo.categories))
	}
}

func TestBuildCategoryIndexAnyOrder(t *testing.T) {
	cats := []Category{
		{ID: "linear", Name: "Linear", ParentID: "alg"},
		{ID: "alg", Name: "Algebra", ParentID: "math"},
		{ID: "math", Name: "Math"},
	}
	idx, err := BuildCategoryIndex(cats)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := idx.Subtree("math"); len(got) != 3 {
		t.Fatalf("expected subtree of 3, got %v", got)
	}

	_, err = BuildCategoryIndex([]Category{{ID: "orphan", Name: "Orphan", ParentID: "missing"}})
	if !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}
