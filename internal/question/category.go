package question

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrUnknownParent     = errors.New("parent category not found")
	ErrDuplicateCategory = errors.New("category already exists")
)

type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SubjectID string `json:"subject_id"`
	ParentID  string `json:"parent_id,omitempty"`
}

func NewCategory(id, name, subjectID, parentID string) (Category, error) {
	c := Category{
		ID:        strings.TrimSpace(id),
		Name:      strings.TrimSpace(name),
		SubjectID: strings.TrimSpace(subjectID),
		ParentID:  strings.TrimSpace(parentID),
	}
	if c.ID == "" || c.Name == "" {
		return Category{}, fmt.Errorf("%w: id and name are required", ErrInvalidCategory)
	}
	if c.ParentID == c.ID {
		return Category{}, fmt.Errorf("%w: category cannot be its own parent", ErrInvalidCategory)
	}
	return c, nil
}

// CategoryIndex holds categories in insertion order. A category can only be
// added after its parent, so the parent graph never contains a cycle.
type CategoryIndex struct {
	byID     map[string]Category
	children map[string][]string
	order    []string
}

func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{
		byID:     make(map[string]Category),
		children: make(map[string][]string),
	}
}

// BuildCategoryIndex adds cats in dependency order, whatever order the
// store returned them in. A category whose parent never shows up is an error.
func BuildCategoryIndex(cats []Category) (*CategoryIndex, error) {
	idx := NewCategoryIndex()
	pending := cats
	for len(pending) > 0 {
		var next []Category
		for _, c := range pending {
			if c.ParentID != "" {
				if _, ok := idx.byID[c.ParentID]; !ok {
					next = append(next, c)
					continue
				}
			}
			if err := idx.Add(c); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, next[0].ParentID)
		}
		pending = next
	}
	return idx, nil
}

func (x *CategoryIndex) Add(c Category) error {
	if _, ok := x.byID[c.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCategory, c.ID)
	}
	if c.ParentID != "" {
		if _, ok := x.byID[c.ParentID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParent, c.ParentID)
		}
		x.children[c.ParentID] = append(x.children[c.ParentID], c.ID)
	}
	x.byID[c.ID] = c
	x.order = append(x.order, c.ID)
	return nil
}

func (x *CategoryIndex) Get(id string) (Category, bool) {
	c, ok := x.byID[id]
	return c, ok
}

func (x *CategoryIndex) All() []Category {
	out := make([]Category, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.byID[id])
	}
	return out
}

// Subtree returns id followed by all of its descendants. Unknown ids yield nil.
func (x *CategoryIndex) Subtree(id string) []string {
	if _, ok := x.byID[id]; !ok {
		return nil
	}
	out := []string{id}
	for i := 0; i < len(out); i++ {
		out = append(out, x.children[out[i]]...)
	}
	return out
}
