package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"assessly/internal/app/apiresp"
	"assessly/internal/app/observability"
	"assessly/internal/exam"
	"assessly/internal/ingest"
	"assessly/internal/question"
	"assessly/internal/report"
	"assessly/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services is the wired object graph behind the HTTP surface and the CLI.
type Services struct {
	DB        *sql.DB
	Store     *store.Store
	Questions *question.Service
	Ingest    *ingest.Service
	Exams     *exam.Service
	Reports   *report.Service
	Collector *observability.Collector
}

// NewServices migrates the schema and builds every service on top of dbConn.
func NewServices(ctx context.Context, cfg Config, dbConn *sql.DB, log *slog.Logger) (*Services, error) {
	if log == nil {
		log = slog.Default()
	}
	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	st := store.New(dbConn, dialect)
	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	collector := observability.NewCollector(dbConn, log.With("component", "http"))
	questions := question.NewService(st)
	exams := exam.NewService(questions, st, exam.ServiceConfig{
		Logger:                    log.With("component", "exam"),
		TickInterval:              cfg.TickInterval,
		Retention:                 cfg.SessionRetention,
		DefaultCount:              cfg.DefaultQuestionCount,
		DefaultSecondsPerQuestion: cfg.DefaultSecondsPerQuestion,
	})
	collector.TrackSessions(exams)
	imports := ingest.NewService(st, ingest.ServiceConfig{
		Logger:   log.With("component", "ingest"),
		Observer: collector,
	})

	return &Services{
		DB:        dbConn,
		Store:     st,
		Questions: questions,
		Ingest:    imports,
		Exams:     exams,
		Reports:   report.NewService(st),
		Collector: collector,
	}, nil
}

// Close stops every running session countdown. The database handle belongs
// to the caller.
func (s *Services) Close() {
	s.Exams.Close()
}

func NewRouter(cfg Config, svc *Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(svc.Collector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusMethodNotAllowed, "")
	})

	questionHandler := question.NewHandler(svc.Questions)
	importHandler := ingest.NewHandler(svc.Ingest)
	examHandler := exam.NewHandler(svc.Exams)
	reportHandler := report.NewHandler(svc.Reports)
	importLimiter := NewIPRateLimiter(cfg.ImportRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.DB.PingContext(ctx); err != nil {
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		apiresp.WriteOK(w, r, http.StatusOK, map[string]any{"active_sessions": svc.Exams.ActiveSessions()})
	})
	r.Get("/metrics", svc.Collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/questions", questionHandler.ListQuestions)
		api.Put("/questions/{id}", questionHandler.ReplaceQuestion)
		api.Get("/categories", questionHandler.ListCategories)
		api.Post("/categories", questionHandler.CreateCategory)

		api.With(RateLimitMiddleware(importLimiter)).Post("/imports/{format}", importHandler.Import)

		api.Post("/sessions", examHandler.Start)
		api.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", examHandler.Get)
			s.Delete("/", examHandler.Discard)
			s.Put("/answer", examHandler.Answer)
			s.Post("/goto", examHandler.GoTo)
			s.Post("/submit", examHandler.Submit)
			s.Post("/review", examHandler.Review)
		})

		api.Get("/results/trend", reportHandler.Trend)
		api.Get("/results/summary", reportHandler.Summary)
		api.Get("/results/export", reportHandler.Export)
	})

	return r
}
