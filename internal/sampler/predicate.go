package sampler

import (
	"strings"

	"assessly/internal/question"
)

func All(question.Question) bool { return true }

func InCategories(ids ...string) Predicate {
	set := toSet(ids)
	if len(set) == 0 {
		return All
	}
	return func(q question.Question) bool {
		_, ok := set[q.CategoryID]
		return ok
	}
}

// InCategoryTree admits questions filed under any of ids or their descendants.
func InCategoryTree(idx *question.CategoryIndex, ids ...string) Predicate {
	if idx == nil {
		return InCategories(ids...)
	}
	expanded := make([]string, 0, len(ids))
	for _, id := range ids {
		if sub := idx.Subtree(strings.TrimSpace(id)); sub != nil {
			expanded = append(expanded, sub...)
		} else {
			expanded = append(expanded, id)
		}
	}
	return InCategories(expanded...)
}

func HasAnyTag(tags ...string) Predicate {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return All
	}
	return func(q question.Question) bool {
		for _, t := range clean {
			if q.HasTag(t) {
				return true
			}
		}
		return false
	}
}

func WithDifficulty(ds ...question.Difficulty) Predicate {
	if len(ds) == 0 {
		return All
	}
	return func(q question.Question) bool {
		for _, d := range ds {
			if q.Difficulty == d {
				return true
			}
		}
		return false
	}
}

// And admits a question only if every non-nil predicate does.
func And(preds ...Predicate) Predicate {
	return func(q question.Question) bool {
		for _, p := range preds {
			if p != nil && !p(q) {
				return false
			}
		}
		return true
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
