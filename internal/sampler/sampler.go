// Package sampler draws random subsets of the question pool.
package sampler

import (
	"math/rand/v2"

	"assessly/internal/question"
)

// Predicate decides whether a question is eligible. A nil Predicate admits
// every question.
type Predicate func(q question.Question) bool

type options struct {
	rng *rand.Rand
}

type Option func(*options)

// WithSeed makes the draw reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// Sample filters pool with pred and returns min(n, matches) distinct questions
// in random order. The pool slice is never reordered.
func Sample(pool []question.Question, pred Predicate, n int, opts ...Option) []question.Question {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if n <= 0 {
		return []question.Question{}
	}

	eligible := make([]question.Question, 0, len(pool))
	for _, q := range pool {
		if pred == nil || pred(q) {
			eligible = append(eligible, q)
		}
	}

	swap := func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] }
	if o.rng != nil {
		o.rng.Shuffle(len(eligible), swap)
	} else {
		rand.Shuffle(len(eligible), swap)
	}

	if n > len(eligible) {
		n = len(eligible)
	}
	return eligible[:n:n]
}
