package report

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"assessly/internal/app/apiresp"
	"assessly/internal/exam"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reportService interface {
	Trend(ctx context.Context, window int) (*exam.Trend, error)
	Summary(ctx context.Context) (*Summary, error)
	ExportResultsExcel(ctx context.Context) ([]byte, error)
}

type Handler struct {
	svc reportService
	now func() time.Time
}

func NewHandler(svc reportService) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	window := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			apiresp.WriteError(w, r, http.StatusBadRequest, "window must be an integer")
			return
		}
		window = v
	}
	t, err := h.svc.Trend(r.Context(), window)
	if err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, t)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, sum)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	raw, err := h.svc.ExportResultsExcel(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	name := "results-" + h.now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
