package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"assessly/internal/exam"

	"github.com/xuri/excelize/v2"
)

type fakeHistory struct {
	items []exam.Result
	err   error
}

func (f *fakeHistory) ListResults(ctx context.Context) ([]exam.Result, error) {
	return f.items, f.err
}

func sampleHistory() []exam.Result {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return []exam.Result{
		{ID: "a", TakenAt: base, Kind: exam.KindMock, Total: 4, Correct: 1, Wrong: 3, ScorePercent: 25},
		{ID: "b", TakenAt: base.Add(time.Hour), Kind: exam.KindLive, Total: 4, Correct: 3, Skipped: 1, ScorePercent: 75},
		{ID: "c", TakenAt: base.Add(2 * time.Hour), Kind: exam.KindMock, Total: 2, Correct: 2, ScorePercent: 100},
	}
}

func TestTrendUsesWholeHistoryForLargeWindow(t *testing.T) {
	svc := NewService(&fakeHistory{items: sampleHistory()})
	got, err := svc.Trend(context.Background(), 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got.Points))
	}
	if got.Mean != (25.0+75.0+100.0)/3 {
		t.Fatalf("unexpected mean %v", got.Mean)
	}
}

func TestTrendWindowValidation(t *testing.T) {
	svc := NewService(&fakeHistory{items: sampleHistory()})
	if _, err := svc.Trend(context.Background(), -1); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	got, err := svc.Trend(context.Background(), 0)
	if err != nil || len(got.Points) != 3 {
		t.Fatalf("expected default window to cover history, got %v, %v", got, err)
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(&fakeHistory{items: sampleHistory()})
	got, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Results != 3 || got.HighestScore != 100 || got.LowestScore != 25 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.MockCount != 2 || got.LiveCount != 1 {
		t.Fatalf("unexpected kind counts: %+v", got)
	}

	empty, err := NewService(&fakeHistory{}).Summary(context.Background())
	if err != nil || empty.Results != 0 || empty.AverageScore != 0 {
		t.Fatalf("expected empty summary, got %+v, %v", empty, err)
	}
}

func TestExportResultsExcel(t *testing.T) {
	svc := NewService(&fakeHistory{items: sampleHistory()})
	raw, err := svc.ExportResultsExcel(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[2][0] != "b" || rows[2][2] != "live" || rows[3][8] != "100" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestServicePropagatesHistoryError(t *testing.T) {
	svc := NewService(&fakeHistory{err: errors.New("db down")})
	if _, err := svc.Summary(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := svc.ExportResultsExcel(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
