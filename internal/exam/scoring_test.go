package exam

import (
	"math"
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	qs := testQuestions(4) // keys 0,1,2,3
	tests := []struct {
		name    string
		answers []int
		correct int
		wrong   int
		skipped int
		percent int
	}{
		{name: "all skipped", answers: []int{-1, -1, -1, -1}, skipped: 4, percent: 0},
		{name: "all correct", answers: []int{0, 1, 2, 3}, correct: 4, percent: 100},
		{name: "mixed", answers: []int{0, 0, -1, 3}, correct: 2, wrong: 1, skipped: 1, percent: 50},
		{name: "short answers slice", answers: []int{0}, correct: 1, skipped: 3, percent: 25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(qs, tc.answers, ResultMeta{ID: "r", Kind: KindLive, TakenAt: time.Unix(0, 0)})
			if got.Correct != tc.correct || got.Wrong != tc.wrong || got.Skipped != tc.skipped {
				t.Fatalf("expected %d/%d/%d, got %d/%d/%d", tc.correct, tc.wrong, tc.skipped, got.Correct, got.Wrong, got.Skipped)
			}
			if got.Correct+got.Wrong+got.Skipped != got.Total {
				t.Fatalf("expected counts to sum to total, got %+v", got)
			}
			if got.ScorePercent != tc.percent {
				t.Fatalf("expected %d%%, got %d%%", tc.percent, got.ScorePercent)
			}
			if got.Kind != KindLive || got.ID != "r" {
				t.Fatalf("expected meta copied, got %+v", got)
			}
		})
	}
}

func TestPercentRoundsHalfUp(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			want := int(math.Floor(float64(correct)*100/float64(total) + 0.5))
			if got := Percent(correct, total); got != want {
				t.Fatalf("Percent(%d,%d) = %d, want %d", correct, total, got, want)
			}
		}
	}
	if Percent(1, 8) != 13 {
		t.Fatalf("expected 12.5 to round up to 13")
	}
	if Percent(0, 0) != 0 {
		t.Fatalf("expected zero total to give 0")
	}
}
