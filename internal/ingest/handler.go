package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"assessly/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

const maxImportBytes = 8 << 20

type Handler struct {
	svc importService
}

type importService interface {
	Import(ctx context.Context, b Batch) (*Report, error)
}

func NewHandler(svc importService) *Handler {
	return &Handler{svc: svc}
}

type importResponse struct {
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
	IDs      []string    `json:"ids"`
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(body) == 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "request body is empty")
		return
	}

	report, err := h.svc.Import(r.Context(), Batch{
		Format:     format,
		Body:       body,
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category_id")),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMalformedBatch), errors.Is(err, ErrUnknownFormat):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNoQuestionsFound):
			apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	ids := make([]string, 0, len(report.Questions))
	for _, q := range report.Questions {
		ids = append(ids, q.ID)
	}
	apiresp.WriteOK(w, r, http.StatusOK, importResponse{
		Accepted: report.Accepted,
		Rejected: report.Rejected,
		IDs:      ids,
	})
}
