package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"assessly/internal/exam"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidWindow = errors.New("invalid trend window")

const DefaultWindow = 10

type resultHistory interface {
	ListResults(ctx context.Context) ([]exam.Result, error)
}

type Service struct {
	history resultHistory
}

type Summary struct {
	Results      int     `json:"results"`
	AverageScore float64 `json:"average_score"`
	HighestScore int     `json:"highest_score"`
	LowestScore  int     `json:"lowest_score"`
	MockCount    int     `json:"mock_count"`
	LiveCount    int     `json:"live_count"`
}

func NewService(history resultHistory) *Service {
	return &Service{history: history}
}

// Trend returns the trailing trend over the last window results. Zero picks
// DefaultWindow.
func (s *Service) Trend(ctx context.Context, window int) (*exam.Trend, error) {
	if window < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	if window == 0 {
		window = DefaultWindow
	}
	items, err := s.history.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	t := exam.TrailingTrend(items, window)
	return &t, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	items, err := s.history.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := &Summary{Results: len(items)}
	if len(items) == 0 {
		return out, nil
	}

	sum := 0
	out.HighestScore = items[0].ScorePercent
	out.LowestScore = items[0].ScorePercent
	for _, r := range items {
		sum += r.ScorePercent
		out.HighestScore = max(out.HighestScore, r.ScorePercent)
		out.LowestScore = min(out.LowestScore, r.ScorePercent)
		if r.Kind == exam.KindLive {
			out.LiveCount++
		} else {
			out.MockCount++
		}
	}
	out.AverageScore = float64(sum) / float64(len(items))
	return out, nil
}

// ExportResultsExcel writes the whole history as a single-sheet workbook,
// oldest result first.
func (s *Service) ExportResultsExcel(ctx context.Context) ([]byte, error) {
	items, err := s.history.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Results"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headers := []string{"id", "taken_at", "kind", "title", "total", "correct", "wrong", "skipped", "score_percent"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, r := range items {
		values := []any{
			r.ID,
			r.TakenAt.UTC().Format("2006-01-02 15:04:05"),
			string(r.Kind),
			r.Title,
			r.Total,
			r.Correct,
			r.Wrong,
			r.Skipped,
			r.ScorePercent,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 38)
	_ = f.SetColWidth(sheet, "C", "I", 14)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
