package app

import (
	"sync"
	"time"

	"github.com/randomtoy/oraculum/internal/domain"
)

// EventType tags what a session event carries.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventQuestions EventType = "clarifying_questions"
	EventOutcome   EventType = "outcome"
)

// Event is one item of a session's outbound stream: stage progress, the
// clarifying questions awaiting answers, or the terminal outcome.
type Event struct {
	Type      EventType              `json:"type"`
	Progress  *domain.ProgressEvent  `json:"progress,omitempty"`
	Questions []string               `json:"questions,omitempty"`
	Outcome   *domain.SessionOutcome `json:"outcome,omitempty"`
}

// Session is one in-flight (or finished) reading. The orchestrator goroutine
// owns the context; everything observable from outside goes through the
// mutex or the events channel.
type Session struct {
	ID        string
	UserID    string
	Tariff    domain.Tariff
	CreatedAt time.Time

	sc *domain.SessionContext

	mu        sync.Mutex
	state     domain.SessionState
	questions []string
	answers   []string
	outcome   *domain.SessionOutcome
	image     []byte

	events     chan Event
	answersCh  chan []string
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func newSession(id, userID string, tariff domain.Tariff, profile domain.Profile, spread domain.Spread) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Tariff:    tariff,
		CreatedAt: time.Now(),
		sc:        domain.NewSessionContext(profile, spread),
		state:     domain.StatePending,
		events:    make(chan Event, 32),
		answersCh: make(chan []string, 1),
		cancelCh:  make(chan struct{}),
	}
}

// Events is the stream consumed by the front-end adapter. It is closed after
// the outcome event.
func (s *Session) Events() <-chan Event { return s.events }

// Spread returns the cards drawn for this reading.
func (s *Session) Spread() domain.Spread { return s.sc.Spread }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Outcome returns the terminal outcome, or nil while the session runs.
func (s *Session) Outcome() *domain.SessionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Questions returns the clarifying questions while awaiting answers.
func (s *Session) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Image returns the rendered spread image, if the renderer produced one.
func (s *Session) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

func (s *Session) setImage(img []byte) {
	s.mu.Lock()
	s.image = img
	s.mu.Unlock()
}

func (s *Session) setAwaiting(questions []string) {
	s.mu.Lock()
	s.state = domain.StateAwaitingAnswers
	s.questions = append([]string(nil), questions...)
	s.mu.Unlock()
}

func (s *Session) recordAnswers(answers []string) {
	s.mu.Lock()
	s.answers = append([]string(nil), answers...)
	s.state = domain.StateRunning
	s.mu.Unlock()
}

// exchanged pairs the asked questions with the received answers.
func (s *Session) exchanged() []domain.QA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return nil
	}
	qa := make([]domain.QA, 0, len(s.questions))
	for i, q := range s.questions {
		answer := ""
		if i < len(s.answers) {
			answer = s.answers[i]
		}
		qa = append(qa, domain.QA{Question: q, Answer: answer})
	}
	return qa
}

// submitAnswers hands the user's answer set to the waiting orchestrator.
// Exactly one answer set is accepted per session.
func (s *Session) submitAnswers(answers []string) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state.Terminal() {
		return domain.ErrSessionTerminal
	}
	if state != domain.StateAwaitingAnswers {
		return domain.ErrNotAwaitingInput
	}
	select {
	case s.answersCh <- answers:
		return nil
	default:
		return domain.ErrNotAwaitingInput
	}
}

// cancel requests termination. Safe to call any number of times.
func (s *Session) cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

func (s *Session) cancelled() bool {
	select {
	case <-s.cancelCh:
		return true
	default:
		return false
	}
}

// finish records the terminal outcome, emits it, and closes the stream.
func (s *Session) finish(outcome domain.SessionOutcome) {
	s.mu.Lock()
	if outcome.Completed {
		s.state = domain.StateCompleted
	} else {
		s.state = domain.StateFailed
	}
	s.outcome = &outcome
	s.mu.Unlock()

	s.emit(Event{Type: EventOutcome, Outcome: &outcome})
	close(s.events)
}

// emit never blocks the pipeline: if the consumer lags behind the buffer,
// the event is dropped. Snapshots remain available through accessors.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
