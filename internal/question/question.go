package question

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidQuestion = errors.New("invalid question")

// Difficulty is the coarse difficulty label attached to a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps v onto the allow-list; anything else becomes medium.
func ParseDifficulty(v string) Difficulty {
	switch Difficulty(strings.TrimSpace(strings.ToLower(v))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Question is a validated multiple-choice item. Values are never modified
// after CreateQuestion returns them; an edit is a new Question with the same ID.
type Question struct {
	ID           string     `json:"id"`
	CategoryID   string     `json:"category_id"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correct_index"`
	Explanation  string     `json:"explanation,omitempty"`
	Difficulty   Difficulty `json:"difficulty"`
	Tags         []string   `json:"tags,omitempty"`
}

// IsCorrect reports whether option is the keyed answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectIndex
}

// HasTag reports whether q carries tag, compared case-insensitively.
func (q Question) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range q.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

type Input struct {
	ID           string
	CategoryID   string
	Prompt       string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   string
	Tags         []string
}

// ValidationError describes the first field that made an Input unacceptable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuestion
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CreateQuestion validates in and returns the normalized Question.
func CreateQuestion(in Input) (Question, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return Question{}, invalid("id", "is required")
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return Question{}, invalid("prompt", "is empty")
	}
	if len(in.Options) < 2 {
		return Question{}, invalid("options", fmt.Sprintf("need at least 2 options, got %d", len(in.Options)))
	}

	options := make([]string, 0, len(in.Options))
	for i, opt := range in.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return Question{}, invalid("options", fmt.Sprintf("option %d is empty", i+1))
		}
		options = append(options, opt)
	}
	if in.CorrectIndex < 0 || in.CorrectIndex >= len(options) {
		return Question{}, invalid("correct_index", fmt.Sprintf("%d is out of range [0,%d)", in.CorrectIndex, len(options)))
	}

	return Question{
		ID:           id,
		CategoryID:   strings.TrimSpace(in.CategoryID),
		Prompt:       prompt,
		Options:      options,
		CorrectIndex: in.CorrectIndex,
		Explanation:  strings.TrimSpace(in.Explanation),
		Difficulty:   ParseDifficulty(in.Difficulty),
		Tags:         normalizeTags(in.Tags),
	}, nil
}

func normalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
