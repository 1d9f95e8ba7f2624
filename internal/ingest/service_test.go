package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"assessly/internal/question"
)

type fakeStore struct {
	saved   []question.Question
	calls   int
	saveErr error
}

func (f *fakeStore) SaveQuestions(ctx context.Context, items []question.Question) error {
	f.calls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, items...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("q-%d", n)
	}
}

func TestImportRecordsCommitsAccepted(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, ServiceConfig{Logger: quietLogger(), NewID: sequentialIDs()})

	raw := `[
		{"q":"a","opts":["1","2"]},
		{"q":"b","opts":["1","2"]},
		{"q":"c","opts":["1"]},
		{"q":"d","opts":["1","2"],"ans":3},
		{"q":"e","opts":["1","2"],"ans":1}
	]`
	report, err := svc.Import(context.Background(), Batch{Format: FormatRecords, Body: []byte(raw), CategoryID: "math"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Accepted != 3 {
		t.Fatalf("expected 3 accepted, got %d", report.Accepted)
	}
	if len(report.Rejected) != 2 || report.Rejected[0].Index != 2 || report.Rejected[1].Index != 3 {
		t.Fatalf("expected rejections at 2 and 3 in order, got %+v", report.Rejected)
	}
	if len(store.saved) != 3 || store.saved[0].ID != "q-1" || store.saved[0].CategoryID != "math" {
		t.Fatalf("unexpected saved questions: %+v", store.saved)
	}
}

func TestImportOutline(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, ServiceConfig{Logger: quietLogger()})

	report, err := svc.Import(context.Background(), Batch{Format: FormatOutline, Body: []byte(twoQuestionOutline)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Accepted != 2 || len(store.saved) != 2 {
		t.Fatalf("expected 2 accepted and saved, got %d/%d", report.Accepted, len(store.saved))
	}
	if store.saved[0].ID == "" || store.saved[0].ID == store.saved[1].ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", store.saved[0].ID, store.saved[1].ID)
	}
}

func TestImportWholeBatchFailureCommitsNothing(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  error
	}{
		{name: "malformed records", batch: Batch{Format: FormatRecords, Body: []byte(`{}`)}, want: ErrMalformedBatch},
		{name: "outline without questions", batch: Batch{Format: FormatOutline, Body: []byte("hello")}, want: ErrNoQuestionsFound},
		{name: "unknown format", batch: Batch{Format: "csv", Body: []byte("x")}, want: ErrUnknownFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewService(store, ServiceConfig{Logger: quietLogger()})
			_, err := svc.Import(context.Background(), tc.batch)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if store.calls != 0 {
				t.Fatalf("expected nothing committed, got %d calls", store.calls)
			}
		})
	}
}

func TestImportAllRejectedSkipsSave(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, ServiceConfig{Logger: quietLogger()})

	report, err := svc.Import(context.Background(), Batch{Format: FormatRecords, Body: []byte(`[{"q":"x","opts":["a"]}]`)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Accepted != 0 || store.calls != 0 {
		t.Fatalf("expected no save for empty accepted set, got accepted=%d calls=%d", report.Accepted, store.calls)
	}
}

func TestImportStoreError(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	svc := NewService(store, ServiceConfig{Logger: quietLogger()})

	_, err := svc.Import(context.Background(), Batch{Format: FormatRecords, Body: []byte(`[{"q":"x","opts":["a","b"]}]`)})
	if err == nil {
		t.Fatalf("expected error from store")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"outline": FormatOutline, "TXT": FormatOutline, "json": FormatRecords, "records": FormatRecords, "xlsx": FormatWorkbook, "workbook": FormatWorkbook}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("csv"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]string{
		"bank/week1.txt":    "outline",
		"bank/week1.JSON":   "records",
		"bank/sheet.xlsx":   "xlsx",
		"bank/export.csv":   "csv",
		"bank/no-extension": "",
	}
	for in, want := range cases {
		if got := FormatFromFilename(in); got != want {
			t.Fatalf("FormatFromFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeRejectionsOrdersByIndex(t *testing.T) {
	got := mergeRejections(
		[]Rejection{{Index: 0}, {Index: 4}},
		[]Rejection{{Index: 2}, {Index: 5}},
	)
	want := []int{0, 2, 4, 5}
	for i, idx := range want {
		if got[i].Index != idx {
			t.Fatalf("position %d: expected index %d, got %d", i, idx, got[i].Index)
		}
	}
}

type countingObserver struct {
	format             string
	accepted, rejected int
}

func (o *countingObserver) ObserveImport(format string, accepted, rejected int) {
	o.format = format
	o.accepted += accepted
	o.rejected += rejected
}

func TestImportNotifiesObserver(t *testing.T) {
	obs := &countingObserver{}
	svc := NewService(&fakeStore{}, ServiceConfig{Logger: quietLogger(), Observer: obs})

	_, err := svc.Import(context.Background(), Batch{Format: FormatRecords, Body: []byte(`[{"q":"x","opts":["a","b"]},{"q":"y"}]`)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if obs.format != "records" || obs.accepted != 1 || obs.rejected != 1 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}
