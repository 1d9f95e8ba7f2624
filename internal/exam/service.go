package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"assessly/internal/question"
	"assessly/internal/sampler"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrReviewUnavailable = errors.New("session is not finished")
	ErrServiceClosed     = errors.New("session service closed")
)

// ResultRepository is the append-only history of finished sessions.
type ResultRepository interface {
	AppendResult(ctx context.Context, r Result) error
	// ListResults returns every result, oldest first.
	ListResults(ctx context.Context) ([]Result, error)
}

type questionSource interface {
	ListQuestions(ctx context.Context, f question.Filter) ([]question.Question, error)
	CategoryIndex(ctx context.Context) (*question.CategoryIndex, error)
}

type ServiceConfig struct {
	Logger                    *slog.Logger
	TickInterval              time.Duration
	DefaultCount              int
	DefaultSecondsPerQuestion int
	PersistTimeout            time.Duration
	NewID                     func() string
	Now                       func() time.Time

	// Retention is how long a finished session stays readable before it is
	// evicted.
	Retention time.Duration
}

// Service hosts running sessions. Every session has its own lock and its own
// countdown goroutine; all mutation of a Session happens under that lock.
type Service struct {
	questions questionSource
	results   ResultRepository
	log       *slog.Logger
	cfg       ServiceConfig

	mu       sync.Mutex
	sessions map[string]*liveSession
	closed   bool
	wg       sync.WaitGroup
}

type liveSession struct {
	mu        sync.Mutex
	session   *Session
	persisted bool
	stop      chan struct{}
	stopOnce  sync.Once

	// evict is guarded by Service.mu.
	evict *time.Timer
}

func (l *liveSession) halt() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func NewService(questions questionSource, results ResultRepository, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = 10
	}
	if cfg.DefaultSecondsPerQuestion <= 0 {
		cfg.DefaultSecondsPerQuestion = 60
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		questions: questions,
		results:   results,
		log:       cfg.Logger,
		cfg:       cfg,
		sessions:  make(map[string]*liveSession),
	}
}

type StartInput struct {
	CategoryIDs        []string
	Tags               []string
	Difficulties       []string
	Count              int
	SecondsPerQuestion int
	Kind               string
	Title              string
}

type SessionView struct {
	ID string `json:"id"`
	Snapshot
}

// Start samples the pool and begins a countdown for the new session.
func (s *Service) Start(ctx context.Context, in StartInput) (*SessionView, error) {
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return nil, err
	}
	if in.Count < 0 || in.SecondsPerQuestion < 0 {
		return nil, fmt.Errorf("%w: count and seconds_per_question must not be negative", ErrInvalidConfig)
	}
	count := in.Count
	if count == 0 {
		count = s.cfg.DefaultCount
	}
	perQuestion := in.SecondsPerQuestion
	if perQuestion == 0 {
		perQuestion = s.cfg.DefaultSecondsPerQuestion
	}

	pool, err := s.questions.ListQuestions(ctx, question.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	idx, err := s.questions.CategoryIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	difficulties := make([]question.Difficulty, 0, len(in.Difficulties))
	for _, d := range in.Difficulties {
		if strings.TrimSpace(d) != "" {
			difficulties = append(difficulties, question.ParseDifficulty(d))
		}
	}
	picked := sampler.Sample(pool, sampler.And(
		sampler.InCategoryTree(idx, in.CategoryIDs...),
		sampler.HasAnyTag(in.Tags...),
		sampler.WithDifficulty(difficulties...),
	), count)

	sess, err := NewSession(SessionConfig{
		Questions:          picked,
		SecondsPerQuestion: perQuestion,
		Title:              strings.TrimSpace(in.Title),
		Kind:               kind,
	}, WithClock(s.cfg.Now), WithIDGenerator(s.cfg.NewID))
	if err != nil {
		return nil, err
	}

	id := s.cfg.NewID()
	view := &SessionView{ID: id, Snapshot: sess.Snapshot()}
	live := &liveSession{session: sess, stop: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.sessions[id] = live
	s.wg.Add(1)
	s.mu.Unlock()

	go s.countdown(id, live)

	s.log.Info("session started",
		"session_id", id,
		"kind", string(kind),
		"questions", view.Total,
		"budget_seconds", view.RemainingSeconds,
	)
	return view, nil
}

func (s *Service) countdown(id string, live *liveSession) {
	defer s.wg.Done()
	defer s.scheduleEviction(id, live)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-live.stop:
			return
		case <-ticker.C:
			live.mu.Lock()
			res, finished := live.session.Tick()
			if finished {
				s.log.Info("session timed out", "session_id", id, "score_percent", res.ScorePercent)
				ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
				if err := s.persistLocked(ctx, live, res); err != nil {
					s.log.Error("persist result failed", "session_id", id, "err", err)
				}
				cancel()
			}
			done := live.session.Phase() != PhaseInProgress
			live.mu.Unlock()
			if done {
				return
			}
		}
	}
}

// scheduleEviction drops the session from the map once Retention has passed.
func (s *Service) scheduleEviction(id string, live *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.sessions[id] != live {
		return
	}
	live.evict = time.AfterFunc(s.cfg.Retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessions[id] == live {
			delete(s.sessions, id)
			s.log.Debug("session evicted", "session_id", id)
		}
	})
}

// persistLocked appends res to history at most once. The caller holds live.mu.
func (s *Service) persistLocked(ctx context.Context, live *liveSession, res Result) error {
	if live.persisted {
		return nil
	}
	if err := s.results.AppendResult(ctx, res); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	live.persisted = true
	return nil
}

func (s *Service) lookup(id string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func (s *Service) Get(ctx context.Context, id string) (*SessionView, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return &SessionView{ID: id, Snapshot: live.session.Snapshot()}, nil
}

// Answer selects option for the current question, or clears it when option
// is nil. Calls after the session finished leave it unchanged.
func (s *Service) Answer(ctx context.Context, id string, option *int) (*SessionView, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	if option == nil {
		live.session.ClearOption()
	} else {
		live.session.SelectOption(*option)
	}
	return &SessionView{ID: id, Snapshot: live.session.Snapshot()}, nil
}

func (s *Service) GoTo(ctx context.Context, id string, index int) (*SessionView, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	live.session.GoTo(index)
	return &SessionView{ID: id, Snapshot: live.session.Snapshot()}, nil
}

// Submit finishes the session and stores its result. Repeated calls return
// the same result without storing it again.
func (s *Service) Submit(ctx context.Context, id string) (*Result, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	res := live.session.Submit()
	live.halt()
	if err := s.persistLocked(ctx, live, res); err != nil {
		return nil, err
	}
	s.log.Info("session submitted", "session_id", id, "score_percent", res.ScorePercent)
	return &res, nil
}

type ReviewView struct {
	Result Result       `json:"result"`
	Items  []ReviewItem `json:"items"`
}

func (s *Service) Review(ctx context.Context, id string) (*ReviewView, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()

	items, ok := live.session.EnterReview()
	if !ok {
		return nil, ErrReviewUnavailable
	}
	res, _ := live.session.Result()
	return &ReviewView{Result: res, Items: items}, nil
}

// Discard drops the session and stops its countdown. An unsubmitted session
// leaves no result behind.
func (s *Service) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	live, ok := s.sessions[strings.TrimSpace(id)]
	delete(s.sessions, strings.TrimSpace(id))
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	live.halt()
	return nil
}

// ActiveSessions counts sessions that are still in progress.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	hosted := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		hosted = append(hosted, live)
	}
	s.mu.Unlock()

	n := 0
	for _, live := range hosted {
		live.mu.Lock()
		if live.session.Phase() == PhaseInProgress {
			n++
		}
		live.mu.Unlock()
	}
	return n
}

// HostedSessions counts every session held in memory, finished ones included.
func (s *Service) HostedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops every countdown and waits for them to exit. Start fails with
// ErrServiceClosed afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	for _, live := range s.sessions {
		live.halt()
		if live.evict != nil {
			live.evict.Stop()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}
