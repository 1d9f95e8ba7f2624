package question

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrQuestionNotFound = errors.New("question not found")

// Filter narrows ListQuestions. Zero value lists the whole pool.
type Filter struct {
	CategoryIDs []string
}

// Repository is the external store holding the question pool and categories.
type Repository interface {
	SaveQuestions(ctx context.Context, items []Question) error
	ListQuestions(ctx context.Context, f Filter) ([]Question, error)
	SaveCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context) ([]Category, error)
}

type Service struct {
	repo Repository
}

type CreateCategoryInput struct {
	ID        string
	Name      string
	SubjectID string
	ParentID  string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListQuestions(ctx context.Context, f Filter) ([]Question, error) {
	f.CategoryIDs = cleanIDs(f.CategoryIDs)
	items, err := s.repo.ListQuestions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return items, nil
}

// ReplaceQuestion validates in and stores it under its ID, replacing any
// earlier version of the same question.
func (s *Service) ReplaceQuestion(ctx context.Context, in Input) (*Question, error) {
	q, err := CreateQuestion(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveQuestions(ctx, []Question{q}); err != nil {
		return nil, fmt.Errorf("save question: %w", err)
	}
	return &q, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	items, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return items, nil
}

// CategoryIndex loads all categories into an index for subtree lookups.
func (s *Service) CategoryIndex(ctx context.Context) (*CategoryIndex, error) {
	items, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildCategoryIndex(items)
}

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*Category, error) {
	c, err := NewCategory(in.ID, in.Name, in.SubjectID, in.ParentID)
	if err != nil {
		return nil, err
	}
	idx, err := s.CategoryIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(c); err != nil {
		return nil, err
	}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("save category: %w", err)
	}
	return &c, nil
}

func cleanIDs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
