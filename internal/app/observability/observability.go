package observability

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

// SessionGauge reports how many sessions are currently hosted.
type SessionGauge interface {
	ActiveSessions() int
}

type Collector struct {
	db       *sql.DB
	log      *slog.Logger
	sessions SessionGauge

	mu           sync.RWMutex
	requestStats map[key]stat
	imports      map[string]int64
	startedAt    time.Time
}

func NewCollector(db *sql.DB, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		db:           db,
		log:          log,
		requestStats: make(map[key]stat),
		imports:      make(map[string]int64),
		startedAt:    time.Now(),
	}
}

// TrackSessions adds an active-session gauge to the metrics output.
func (c *Collector) TrackSessions(g SessionGauge) {
	c.mu.Lock()
	c.sessions = g
	c.mu.Unlock()
}

// ObserveImport counts accepted and rejected questions per import format.
func (c *Collector) ObserveImport(format string, accepted, rejected int) {
	c.mu.Lock()
	c.imports[format+"|accepted"] += int64(accepted)
	c.imports[format+"|rejected"] += int64(rejected)
	c.mu.Unlock()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		c.log.LogAttrs(r.Context(), level, "http request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", extractSessionID(r.URL.Path)),
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", rec.status),
			slog.Float64("latency_ms", latencyMS),
			slog.String("remote_ip", strings.TrimSpace(r.RemoteAddr)),
		)
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	importsCopy := make(map[string]int64, len(c.imports))
	for k, v := range c.imports {
		importsCopy[k] = v
	}
	startedAt := c.startedAt
	sessions := c.sessions
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# assessly metrics\n")
	sb.WriteString("# TYPE assessly_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "assessly_uptime_seconds %.0f\n", time.Since(startedAt).Seconds())

	sb.WriteString("# TYPE assessly_http_requests_total counter\n")
	sb.WriteString("# TYPE assessly_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE assessly_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		fmt.Fprintf(&sb, "assessly_http_requests_total{%s} %d\n", labels, s.Count)
		fmt.Fprintf(&sb, "assessly_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS)
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		fmt.Fprintf(&sb, "assessly_http_request_latency_ms_avg{%s} %.3f\n", labels, avg)
	}

	if len(importsCopy) > 0 {
		names := make([]string, 0, len(importsCopy))
		for k := range importsCopy {
			names = append(names, k)
		}
		sort.Strings(names)
		sb.WriteString("# TYPE assessly_import_questions_total counter\n")
		for _, n := range names {
			format, outcome, _ := strings.Cut(n, "|")
			fmt.Fprintf(&sb, "assessly_import_questions_total{format=\"%s\",outcome=\"%s\"} %d\n", format, outcome, importsCopy[n])
		}
	}

	if sessions != nil {
		sb.WriteString("# TYPE assessly_active_sessions gauge\n")
		fmt.Fprintf(&sb, "assessly_active_sessions %d\n", sessions.ActiveSessions())
	}

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE assessly_db_open_connections gauge\n")
		fmt.Fprintf(&sb, "assessly_db_open_connections %d\n", dbs.OpenConnections)
		sb.WriteString("# TYPE assessly_db_in_use_connections gauge\n")
		fmt.Fprintf(&sb, "assessly_db_in_use_connections %d\n", dbs.InUse)
		sb.WriteString("# TYPE assessly_db_wait_count counter\n")
		fmt.Fprintf(&sb, "assessly_db_wait_count %d\n", dbs.WaitCount)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

// normalizedPath folds numeric and UUID segments into {id} so metrics stay
// low-cardinality.
func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
			continue
		}
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func extractSessionID(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "sessions" && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
