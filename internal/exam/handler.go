package exam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"assessly/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc sessionService
}

type sessionService interface {
	Start(ctx context.Context, in StartInput) (*SessionView, error)
	Get(ctx context.Context, id string) (*SessionView, error)
	Answer(ctx context.Context, id string, option *int) (*SessionView, error)
	GoTo(ctx context.Context, id string, index int) (*SessionView, error)
	Submit(ctx context.Context, id string) (*Result, error)
	Review(ctx context.Context, id string) (*ReviewView, error)
	Discard(ctx context.Context, id string) error
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type startSessionRequest struct {
	CategoryIDs        []string `json:"category_ids"`
	Tags               []string `json:"tags"`
	Difficulty         []string `json:"difficulty"`
	Count              int      `json:"count"`
	SecondsPerQuestion int      `json:"seconds_per_question"`
	Kind               string   `json:"kind"`
	Title              string   `json:"title"`
}

type answerRequest struct {
	OptionIndex json.RawMessage `json:"option_index"`
}

type goToRequest struct {
	Index *int `json:"index"`
}

func NewHandler(svc sessionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	view, err := h.svc.Start(r.Context(), StartInput{
		CategoryIDs:        req.CategoryIDs,
		Tags:               req.Tags,
		Difficulties:       req.Difficulty,
		Count:              req.Count,
		SecondsPerQuestion: req.SecondsPerQuestion,
		Kind:               req.Kind,
		Title:              req.Title,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: view})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if len(req.OptionIndex) == 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "option_index is required"})
		return
	}

	var option *int
	if !bytes.Equal(bytes.TrimSpace(req.OptionIndex), []byte("null")) {
		var v int
		if err := json.Unmarshal(req.OptionIndex, &v); err != nil {
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "option_index must be an integer or null"})
			return
		}
		option = &v
	}

	view, err := h.svc.Answer(r.Context(), chi.URLParam(r, "id"), option)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req goToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if req.Index == nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "index is required"})
		return
	}
	view, err := h.svc.GoTo(r.Context(), chi.URLParam(r, "id"), *req.Index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: res})
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Review(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]string{"status": "discarded"}})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrEmptyPool):
		writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: "no questions match the requested filters"})
	case errors.Is(err, ErrInvalidConfig):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrReviewUnavailable):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, ErrServiceClosed):
		writeJSON(w, r, http.StatusServiceUnavailable, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
