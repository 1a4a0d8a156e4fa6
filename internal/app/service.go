package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ledger"
	"github.com/randomtoy/oraculum/internal/ports"
	"github.com/randomtoy/oraculum/internal/prompts"
)

// Config is the orchestration policy: nothing in here is hardcoded below.
type Config struct {
	DeckID        string
	Tariffs       map[string]domain.Tariff
	DefaultTariff string
	// StageTimeout is the wall-clock ceiling for one stage, all of its
	// retry attempts included.
	StageTimeout time.Duration
	// SettlementPolicy decides the debit for partially completed sessions.
	SettlementPolicy domain.SettlementPolicy
}

// Deps are the collaborators the orchestrator drives. Renderer and Readings
// are optional; a nil renderer skips images, a nil log skips the sink.
type Deps struct {
	Decks    ports.DeckStore
	Prompts  *prompts.Store
	LLM      ports.Completer
	Ledger   *ledger.Ledger
	Renderer ports.SpreadRenderer
	Readings ports.ReadingLog
	RNG      domain.RNG
	Logger   *slog.Logger
}

// ReadingService owns the reading sessions: it draws the spread, walks the
// stage pipeline in order, suspends once for clarifying answers, settles
// credits exactly once, and reports the outcome.
type ReadingService struct {
	cfg    Config
	decks  ports.DeckStore
	runner *stageRunner
	ledger *ledger.Ledger
	render ports.SpreadRenderer
	sink   ports.ReadingLog
	rng    domain.RNG
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewReadingService(cfg Config, deps Deps) *ReadingService {
	return &ReadingService{
		cfg:      cfg,
		decks:    deps.Decks,
		runner:   &stageRunner{prompts: deps.Prompts, llm: deps.LLM, logger: deps.Logger},
		ledger:   deps.Ledger,
		render:   deps.Renderer,
		sink:     deps.Readings,
		rng:      deps.RNG,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
}

// StartRequest begins one reading.
type StartRequest struct {
	UserID     string
	Tariff     string
	SpreadType domain.SpreadType
	Profile    domain.Profile
}

// StartReading draws the spread, registers the session and launches the
// pipeline. The returned session exposes the event stream; the heavy work
// happens on the session's own goroutine.
func (s *ReadingService) StartReading(ctx context.Context, req StartRequest) (*Session, error) {
	name := req.Tariff
	if name == "" {
		name = s.cfg.DefaultTariff
	}
	tariff, ok := s.cfg.Tariffs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTariff, name)
	}

	deck, err := s.decks.GetDeck(ctx, s.cfg.DeckID)
	if err != nil {
		return nil, fmt.Errorf("get deck: %w", err)
	}
	spread, err := domain.GenerateSpread(deck, req.SpreadType, s.rng)
	if err != nil {
		return nil, fmt.Errorf("generate spread: %w", err)
	}

	if err := s.ledger.EnsureAccount(ctx, req.UserID, tariff); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	sess := newSession(uuid.NewString(), req.UserID, tariff, req.Profile, spread)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	go s.run(sess)

	return sess, nil
}

// Get returns a session by id.
func (s *ReadingService) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// SubmitAnswers resumes a session suspended on clarifying questions.
func (s *ReadingService) SubmitAnswers(sessionID string, answers []string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.submitAnswers(answers)
}

// Cancel asks a running session to stop. An in-flight model call is left to
// finish or time out naturally; no further stage calls are issued.
func (s *ReadingService) Cancel(sessionID string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.State().Terminal() {
		return domain.ErrSessionTerminal
	}
	sess.cancel()
	return nil
}

// run is the state machine: Pending -> Authorizing -> Running(i) ->
// (AwaitingAnswers once) -> Finalizing -> Completed | Failed.
func (s *ReadingService) run(sess *Session) {
	ctx := context.Background()
	log := s.logger.With("session_id", sess.ID, "user_id", sess.UserID)
	started := time.Now()

	stages := domain.InterpretationStages()
	total := len(stages)

	sess.setState(domain.StateAuthorizing)
	ok, err := s.ledger.Authorize(ctx, sess.UserID, sess.Tariff)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownUser) {
			// Data-integrity problem: the account was ensured at start.
			log.Error("authorize hit unknown account", "error", err)
		} else {
			log.Error("authorize failed", "error", err)
		}
		s.finalize(ctx, sess, started, 0, domain.NewFailure(domain.FailureBackend, err), false)
		return
	}
	if !ok {
		log.Info("insufficient credits", "tariff", sess.Tariff.Name, "cost", sess.Tariff.SessionCost)
		s.finalize(ctx, sess, started, 0, domain.NewFailure(domain.FailureInsufficientCredits, nil), false)
		return
	}

	if s.render != nil {
		img, rerr := s.render.Render(ctx, sess.Spread())
		if rerr != nil {
			// The reading proceeds without an image.
			log.Warn("spread render failed", "error", rerr)
		} else {
			sess.setImage(img)
		}
	}

	sess.setState(domain.StateRunning)
	completed := 0
	for i, def := range stages {
		if sess.cancelled() {
			s.finalize(ctx, sess, started, completed, domain.NewFailure(domain.FailureCancelled, nil), true)
			return
		}

		stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
		out, serr := s.runner.run(stageCtx, def, sess.sc, sess.Tariff)
		cancel()
		if serr != nil {
			f := domain.AsFailure(serr)
			log.Error("stage failed", "stage", def.Name, "kind", f.Kind, "error", serr)
			s.finalize(ctx, sess, started, completed, f, true)
			return
		}
		// A cancel that arrived while the call was in flight takes effect
		// before the stage result is counted.
		if sess.cancelled() {
			s.finalize(ctx, sess, started, completed, domain.NewFailure(domain.FailureCancelled, nil), true)
			return
		}

		if aerr := sess.sc.Append(out); aerr != nil {
			s.finalize(ctx, sess, started, completed, domain.NewFailure(domain.FailureParse, aerr), true)
			return
		}
		completed++
		log.Info("stage completed", "stage", def.Name, "index", i+1, "total", total)
		sess.emit(Event{Type: EventProgress, Progress: &domain.ProgressEvent{
			StageIndex:  i + 1,
			TotalStages: total,
			Label:       def.Label,
			Percent:     (i + 1) * 100 / total,
		}})

		if def.Shape == domain.ShapeQuestionList {
			sess.setAwaiting(out.Questions)
			sess.emit(Event{Type: EventQuestions, Questions: out.Questions})

			select {
			case answers := <-sess.answersCh:
				entry := domain.StageOutput{
					Stage: domain.AnswersStage,
					Raw:   strings.Join(answers, "\n"),
					Text:  formatAnswers(out.Questions, answers),
				}
				if aerr := sess.sc.Append(entry); aerr != nil {
					s.finalize(ctx, sess, started, completed, domain.NewFailure(domain.FailureParse, aerr), true)
					return
				}
				sess.recordAnswers(answers)
			case <-sess.cancelCh:
				s.finalize(ctx, sess, started, completed, domain.NewFailure(domain.FailureCancelled, nil), true)
				return
			}
		}
	}

	s.finalize(ctx, sess, started, completed, nil, true)
}

// finalize settles credits first and reports the outcome second, so the two
// can never diverge. The ledger makes a second settle for the same session
// id a no-op.
func (s *ReadingService) finalize(ctx context.Context, sess *Session, started time.Time, completedStages int, fail *domain.Failure, settle bool) {
	sess.setState(domain.StateFinalizing)
	log := s.logger.With("session_id", sess.ID, "user_id", sess.UserID)

	stages := domain.InterpretationStages()
	total := len(stages)

	var balance int
	if settle {
		b, err := s.ledger.Settle(ctx, ledger.SettleRequest{
			SessionID:       sess.ID,
			UserID:          sess.UserID,
			Tariff:          sess.Tariff,
			Completed:       fail == nil,
			CompletedStages: completedStages,
			TotalStages:     total,
			Policy:          s.cfg.SettlementPolicy,
		})
		if err != nil {
			log.Error("settlement failed", "error", err)
		}
		balance = b
	} else if b, err := s.ledger.Balance(ctx, sess.UserID); err == nil {
		balance = b
	}

	outcome := domain.SessionOutcome{Balance: balance}
	if fail == nil {
		final, ok := sess.sc.Output(stages[total-1].Name)
		if !ok {
			// Should be unreachable: the last stage just succeeded.
			fail = domain.NewFailure(domain.FailureParse, errors.New("final stage output missing"))
		} else {
			outcome.Completed = true
			outcome.Interpretation = final.Text
			outcome.Exchanged = sess.exchanged()
		}
	}
	if fail != nil {
		outcome.FailureKind = fail.Kind
		outcome.Message = userMessage(fail.Kind)
	}

	sess.finish(outcome)
	log.Info("session finished",
		"completed", outcome.Completed,
		"failure_kind", outcome.FailureKind,
		"stages", completedStages,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if s.sink != nil {
		rec := ports.ReadingRecord{
			SessionID:  sess.ID,
			UserID:     sess.UserID,
			Tariff:     sess.Tariff.Name,
			SpreadType: sess.sc.Spread.Type,
			Profile:    sess.sc.Profile,
			Cards:      sess.sc.Spread.Cards,
			Stages:     sess.sc.Entries(),
			Outcome:    outcome,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if err := s.sink.Append(ctx, rec); err != nil {
			log.Warn("reading log append failed", "error", err)
		}
	}
}

// userMessage maps a failure classification to what the user sees. Raw
// backend detail stays in the logs.
func userMessage(kind domain.FailureKind) string {
	switch kind {
	case domain.FailureInsufficientCredits:
		return "You don't have enough credits for this reading."
	case domain.FailureCancelled:
		return "Your reading was cancelled."
	case domain.FailureTimeout:
		return "Your reading took too long to prepare. Please try again in a few minutes."
	default:
		return "We could not complete your reading. Please try again later."
	}
}
