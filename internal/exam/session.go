package exam

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"assessly/internal/question"

	"github.com/google/uuid"
)

var (
	ErrEmptyPool     = errors.New("no eligible questions")
	ErrInvalidConfig = errors.New("invalid session config")
)

type Phase string

const (
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
	PhaseReviewing  Phase = "reviewing"
)

type Kind string

const (
	KindMock Kind = "mock"
	KindLive Kind = "live"
)

func ParseKind(v string) (Kind, error) {
	switch Kind(strings.TrimSpace(strings.ToLower(v))) {
	case "", KindMock:
		return KindMock, nil
	case KindLive:
		return KindLive, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, v)
	}
}

type SessionConfig struct {
	Questions          []question.Question
	SecondsPerQuestion int
	Title              string
	Kind               Kind
}

// Unanswered marks a question with no selected option.
const Unanswered = -1

type ReviewItem struct {
	Index        int               `json:"index"`
	Question     question.Question `json:"question"`
	Selected     int               `json:"selected"`
	CorrectIndex int               `json:"correct_index"`
	Outcome      Outcome           `json:"outcome"`
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// Session is one attempt at a sampled question set. It is not safe for
// concurrent use; callers that drive it from several goroutines must
// serialize access.
type Session struct {
	cfg       SessionConfig
	current   int
	answers   []int
	remaining int
	phase     Phase
	startedAt time.Time
	result    *Result

	now   func() time.Time
	newID func() string
}

func NewSession(cfg SessionConfig, opts ...Option) (*Session, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrEmptyPool
	}
	if cfg.SecondsPerQuestion <= 0 {
		return nil, fmt.Errorf("%w: seconds per question must be positive", ErrInvalidConfig)
	}
	if cfg.Kind == "" {
		cfg.Kind = KindMock
	}
	cfg.Questions = append([]question.Question(nil), cfg.Questions...)

	s := &Session{
		cfg:       cfg,
		answers:   make([]int, len(cfg.Questions)),
		remaining: len(cfg.Questions) * cfg.SecondsPerQuestion,
		phase:     PhaseInProgress,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.answers {
		s.answers[i] = Unanswered
	}
	s.startedAt = s.now()
	return s, nil
}

// SelectOption records option for the current question, replacing any
// earlier choice. Out-of-range options are ignored.
func (s *Session) SelectOption(option int) bool {
	if s.phase != PhaseInProgress {
		return false
	}
	if option < 0 || option >= len(s.cfg.Questions[s.current].Options) {
		return false
	}
	s.answers[s.current] = option
	return true
}

func (s *Session) ClearOption() bool {
	if s.phase != PhaseInProgress {
		return false
	}
	s.answers[s.current] = Unanswered
	return true
}

func (s *Session) GoTo(index int) bool {
	if s.phase != PhaseInProgress || index < 0 || index >= len(s.cfg.Questions) {
		return false
	}
	s.current = index
	return true
}

func (s *Session) Next() bool { return s.GoTo(s.current + 1) }

func (s *Session) Prev() bool { return s.GoTo(s.current - 1) }

// Tick consumes one second of the budget. The tick that exhausts it submits
// the session and returns the Result with true.
func (s *Session) Tick() (Result, bool) {
	if s.phase != PhaseInProgress {
		return Result{}, false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return Result{}, false
	}
	return s.Submit(), true
}

// Submit finishes the session. Only the first call scores; later calls return
// the same Result.
func (s *Session) Submit() Result {
	if s.result != nil {
		return *s.result
	}
	r := Score(s.cfg.Questions, s.answers, ResultMeta{
		ID:      s.newID(),
		TakenAt: s.now(),
		Kind:    s.cfg.Kind,
		Title:   s.cfg.Title,
	})
	s.result = &r
	s.phase = PhaseFinished
	return r
}

// EnterReview moves a finished session into review and returns per-question
// outcomes. Calling it again while reviewing returns the same items.
func (s *Session) EnterReview() ([]ReviewItem, bool) {
	switch s.phase {
	case PhaseFinished:
		s.phase = PhaseReviewing
	case PhaseReviewing:
	default:
		return nil, false
	}
	items := make([]ReviewItem, 0, len(s.cfg.Questions))
	for i, q := range s.cfg.Questions {
		items = append(items, ReviewItem{
			Index:        i,
			Question:     q,
			Selected:     s.answers[i],
			CorrectIndex: q.CorrectIndex,
			Outcome:      classify(q, s.answers[i]),
		})
	}
	return items, true
}

func (s *Session) Phase() Phase               { return s.phase }
func (s *Session) Config() SessionConfig      { return s.cfg }
func (s *Session) CurrentIndex() int          { return s.current }
func (s *Session) Current() question.Question { return s.cfg.Questions[s.current] }
func (s *Session) RemainingSeconds() int      { return s.remaining }
func (s *Session) StartedAt() time.Time       { return s.startedAt }
func (s *Session) Len() int                   { return len(s.cfg.Questions) }

func (s *Session) Answer(index int) (int, bool) {
	if index < 0 || index >= len(s.answers) || s.answers[index] == Unanswered {
		return Unanswered, false
	}
	return s.answers[index], true
}

func (s *Session) AnsweredCount() int {
	n := 0
	for _, a := range s.answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

// Result returns the scored result once the session has been submitted.
func (s *Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// QuestionView is a question as shown while the attempt is running, without
// the answer key.
type QuestionView struct {
	ID         string              `json:"id"`
	Prompt     string              `json:"prompt"`
	Options    []string            `json:"options"`
	Difficulty question.Difficulty `json:"difficulty"`
}

type Snapshot struct {
	Title            string       `json:"title"`
	Kind             Kind         `json:"kind"`
	Phase            Phase        `json:"phase"`
	CurrentIndex     int          `json:"current_index"`
	Total            int          `json:"total"`
	Answered         int          `json:"answered"`
	RemainingSeconds int          `json:"remaining_seconds"`
	StartedAt        time.Time    `json:"started_at"`
	Current          QuestionView `json:"current"`
	Selected         *int         `json:"selected"`
	Answers          []int        `json:"answers"`
	Result           *Result      `json:"result,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	q := s.Current()
	snap := Snapshot{
		Title:            s.cfg.Title,
		Kind:             s.cfg.Kind,
		Phase:            s.phase,
		CurrentIndex:     s.current,
		Total:            len(s.cfg.Questions),
		Answered:         s.AnsweredCount(),
		RemainingSeconds: s.remaining,
		StartedAt:        s.startedAt,
		Current: QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Difficulty: q.Difficulty,
		},
		Answers: append([]int(nil), s.answers...),
	}
	if a, ok := s.Answer(s.current); ok {
		snap.Selected = &a
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}
