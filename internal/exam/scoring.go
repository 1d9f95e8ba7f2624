package exam

import (
	"time"

	"assessly/internal/question"
)

type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeSkipped Outcome = "skipped"
)

// Result is the scored outcome of one finished session. It is written once
// and never changed.
type Result struct {
	ID           string    `json:"id"`
	TakenAt      time.Time `json:"taken_at"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title,omitempty"`
	Total        int       `json:"total"`
	Correct      int       `json:"correct"`
	Wrong        int       `json:"wrong"`
	Skipped      int       `json:"skipped"`
	ScorePercent int       `json:"score_percent"`
}

type ResultMeta struct {
	ID      string
	TakenAt time.Time
	Kind    Kind
	Title   string
}

// Score classifies every answer against its question. answers[i] is the
// selected option for questions[i] or Unanswered; missing entries count as
// skipped.
func Score(questions []question.Question, answers []int, meta ResultMeta) Result {
	r := Result{
		ID:      meta.ID,
		TakenAt: meta.TakenAt,
		Kind:    meta.Kind,
		Title:   meta.Title,
		Total:   len(questions),
	}
	for i, q := range questions {
		selected := Unanswered
		if i < len(answers) {
			selected = answers[i]
		}
		switch classify(q, selected) {
		case OutcomeCorrect:
			r.Correct++
		case OutcomeWrong:
			r.Wrong++
		default:
			r.Skipped++
		}
	}
	r.ScorePercent = Percent(r.Correct, r.Total)
	return r
}

func classify(q question.Question, selected int) Outcome {
	switch {
	case selected == Unanswered:
		return OutcomeSkipped
	case q.IsCorrect(selected):
		return OutcomeCorrect
	default:
		return OutcomeWrong
	}
}

// Percent is round-half-up of correct/total*100 in integer arithmetic.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
