package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"assessly/internal/question"

	"github.com/go-chi/chi/v5"
)

type mockImportService struct {
	importFn func(ctx context.Context, b Batch) (*Report, error)
}

func (m *mockImportService) Import(ctx context.Context, b Batch) (*Report, error) {
	if m.importFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importFn(ctx, b)
}

func withFormat(r *http.Request, format string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("format", format)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestImportHandlerOK(t *testing.T) {
	h := NewHandler(&mockImportService{
		importFn: func(ctx context.Context, b Batch) (*Report, error) {
			if b.Format != FormatRecords || b.CategoryID != "math" {
				t.Fatalf("unexpected batch: %+v", b)
			}
			return &Report{
				Accepted:  1,
				Questions: []question.Question{{ID: "q1"}},
				Rejected:  []Rejection{{Index: 1, Reason: "need at least 2 options, got 1"}},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/json?category_id=math", bytes.NewReader([]byte(`[]`)))
	req = withFormat(req, "json")
	w := httptest.NewRecorder()

	h.Import(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		OK   bool `json:"ok"`
		Data struct {
			Accepted int         `json:"accepted"`
			Rejected []Rejection `json:"rejected"`
			IDs      []string    `json:"ids"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.OK || body.Data.Accepted != 1 || len(body.Data.Rejected) != 1 || body.Data.IDs[0] != "q1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestImportHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		body   string
		err    error
		code   int
	}{
		{name: "unknown format", format: "csv", body: "x", code: http.StatusBadRequest},
		{name: "empty body", format: "outline", body: "", code: http.StatusBadRequest},
		{name: "malformed", format: "records", body: "{}", err: ErrMalformedBatch, code: http.StatusBadRequest},
		{name: "no questions", format: "outline", body: "hi", err: ErrNoQuestionsFound, code: http.StatusUnprocessableEntity},
		{name: "store failure", format: "outline", body: "hi", err: errors.New("db"), code: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockImportService{
				importFn: func(ctx context.Context, b Batch) (*Report, error) {
					return nil, tc.err
				},
			})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+tc.format, bytes.NewReader([]byte(tc.body)))
			req = withFormat(req, tc.format)
			w := httptest.NewRecorder()

			h.Import(w, req)

			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, w.Code)
			}
		})
	}
}
