package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"assessly/internal/question"

	"github.com/google/uuid"
)

var (
	ErrNoQuestionsFound = errors.New("no questions found")
	ErrMalformedBatch   = errors.New("malformed batch")
	ErrUnknownFormat    = errors.New("unknown import format")
)

type Format string

const (
	FormatOutline  Format = "outline"
	FormatRecords  Format = "records"
	FormatWorkbook Format = "xlsx"
)

func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.TrimSpace(strings.ToLower(v))); f {
	case FormatOutline, FormatRecords, FormatWorkbook:
		return f, nil
	case "text", "txt":
		return FormatOutline, nil
	case "json":
		return FormatRecords, nil
	case "workbook", "excel":
		return FormatWorkbook, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, v)
	}
}

// FormatFromFilename guesses the format name from a file extension. Unknown
// extensions are returned as-is so ParseFormat reports them.
func FormatFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "txt", "md", "text":
		return string(FormatOutline)
	case "json":
		return string(FormatRecords)
	case "xlsx", "xlsm":
		return string(FormatWorkbook)
	}
	return ext
}

// Candidate is a parsed question that has not been validated yet. Index
// points back at the source block or record.
type Candidate struct {
	Index        int
	ID           string
	CategoryID   string
	Prompt       string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   string
	Tags         []string
}

type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type Report struct {
	Accepted  int                 `json:"accepted"`
	Questions []question.Question `json:"questions"`
	Rejected  []Rejection         `json:"rejected"`
}

type ValidateOptions struct {
	// CategoryID is applied to candidates that do not name their own category.
	CategoryID string
	NewID      func() string
}

// Validate runs every candidate through question.CreateQuestion. Failures are
// collected as rejections and never abort the batch.
func Validate(candidates []Candidate, opts ValidateOptions) Report {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	report := Report{
		Questions: make([]question.Question, 0, len(candidates)),
		Rejected:  make([]Rejection, 0),
	}
	for _, c := range candidates {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			id = newID()
		}
		categoryID := strings.TrimSpace(c.CategoryID)
		if categoryID == "" {
			categoryID = strings.TrimSpace(opts.CategoryID)
		}

		q, err := question.CreateQuestion(question.Input{
			ID:           id,
			CategoryID:   categoryID,
			Prompt:       c.Prompt,
			Options:      c.Options,
			CorrectIndex: c.CorrectIndex,
			Explanation:  c.Explanation,
			Difficulty:   c.Difficulty,
			Tags:         c.Tags,
		})
		if err != nil {
			report.Rejected = append(report.Rejected, Rejection{Index: c.Index, Reason: err.Error()})
			continue
		}
		report.Questions = append(report.Questions, q)
	}
	report.Accepted = len(report.Questions)
	return report
}

type questionStore interface {
	SaveQuestions(ctx context.Context, items []question.Question) error
}

// Observer is told about every committed batch.
type Observer interface {
	ObserveImport(format string, accepted, rejected int)
}

type Service struct {
	repo     questionStore
	log      *slog.Logger
	newID    func() string
	observer Observer
}

type ServiceConfig struct {
	Logger   *slog.Logger
	NewID    func() string
	Observer Observer
}

func NewService(repo questionStore, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, log: logger, newID: cfg.NewID, observer: cfg.Observer}
}

type Batch struct {
	Format     Format
	Body       []byte
	CategoryID string
}

// Import parses, validates and commits one batch. Whole-batch failures return
// an error and commit nothing; per-item problems are listed in the report.
func (s *Service) Import(ctx context.Context, b Batch) (*Report, error) {
	candidates, rejected, err := parse(b)
	if err != nil {
		return nil, err
	}

	report := Validate(candidates, ValidateOptions{CategoryID: b.CategoryID, NewID: s.newID})
	report.Rejected = mergeRejections(rejected, report.Rejected)

	if len(report.Questions) > 0 {
		if err := s.repo.SaveQuestions(ctx, report.Questions); err != nil {
			return nil, fmt.Errorf("save questions: %w", err)
		}
	}

	if s.observer != nil {
		s.observer.ObserveImport(string(b.Format), report.Accepted, len(report.Rejected))
	}
	s.log.Info("question batch imported",
		"format", string(b.Format),
		"category_id", b.CategoryID,
		"accepted", report.Accepted,
		"rejected", len(report.Rejected),
	)
	return &report, nil
}

func parse(b Batch) ([]Candidate, []Rejection, error) {
	switch b.Format {
	case FormatOutline:
		return ParseOutline(string(b.Body))
	case FormatRecords:
		return ParseRecords(b.Body)
	case FormatWorkbook:
		return ParseWorkbook(bytes.NewReader(b.Body))
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, b.Format)
	}
}

// mergeRejections keeps the combined list ordered by source index.
func mergeRejections(a, b []Rejection) []Rejection {
	out := make([]Rejection, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Index <= b[j].Index {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
