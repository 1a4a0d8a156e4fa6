package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/oraculum/internal/adapters/decks"
	httpadapter "github.com/randomtoy/oraculum/internal/adapters/http"
	ledgermem "github.com/randomtoy/oraculum/internal/adapters/ledger/memory"
	"github.com/randomtoy/oraculum/internal/app"
	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ledger"
	"github.com/randomtoy/oraculum/internal/ports"
	"github.com/randomtoy/oraculum/internal/prompts"
)

// pipelineLLM plays a full six-stage script. With gate set, the first call
// blocks until the gate closes, keeping the session in a running state.
type pipelineLLM struct {
	gate chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *pipelineLLM) Complete(_ context.Context, _ ports.LLMRequest) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 && f.gate != nil {
		<-f.gate
	}
	switch n {
	case 3:
		return "[QUESTIONS_START]\nQ1: What would you regret not trying?\n[QUESTIONS_END]", nil
	case 6:
		return "[INTERPRETATION_START]\nThe path is open.\n[INTERPRETATION_END]", nil
	default:
		return "stage response text", nil
	}
}

type stdRNG struct{}

func (stdRNG) Intn(n int) int { return 0 }

func newTestServer(t *testing.T, llm ports.Completer) *echo.Echo {
	t.Helper()

	promptStore, err := prompts.NewStore()
	if err != nil {
		t.Fatalf("prompt store: %v", err)
	}
	creditLedger := ledger.New(ledgermem.NewStore())

	svc := app.NewReadingService(app.Config{
		DeckID: "major_arcana",
		Tariffs: map[string]domain.Tariff{
			"basic": {Name: "basic", Model: "test-model", MaxTokens: 500, SessionCost: 1, InitialBalance: 3},
		},
		DefaultTariff:    "basic",
		StageTimeout:     2 * time.Second,
		SettlementPolicy: domain.SettleNone,
	}, app.Deps{
		Decks:   decks.NewEmbeddedStore(),
		Prompts: promptStore,
		LLM:     llm,
		Ledger:  creditLedger,
		RNG:     stdRNG{},
		Logger:  slog.Default(),
	})

	e := echo.New()
	e.Use(httpadapter.RequestIDMiddleware())
	httpadapter.NewHandler(svc, creditLedger).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func startReading(t *testing.T, e *echo.Echo) httpadapter.StartReadingResponse {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/v1/readings",
		`{"user_id":"u1","spread":"three_cards","name":"Vera","age":34,"question":"Should I move?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start reading: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp httpadapter.StartReadingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{})
	rec := doJSON(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestStartReading_ReturnsSpread(t *testing.T) {
	llm := &pipelineLLM{gate: make(chan struct{})}
	t.Cleanup(func() { close(llm.gate) })
	e := newTestServer(t, llm)

	resp := startReading(t, e)
	if resp.SessionID == "" {
		t.Error("missing session id")
	}
	if resp.Spread.Type != "three_cards" {
		t.Errorf("unexpected spread type: %s", resp.Spread.Type)
	}
	if len(resp.Spread.Cards) != 3 {
		t.Errorf("expected 3 cards, got %d", len(resp.Spread.Cards))
	}
	for i, c := range resp.Spread.Cards {
		if c.Position != i+1 {
			t.Errorf("card %d: position %d", i, c.Position)
		}
		if c.PositionLabel == "" {
			t.Errorf("card %d: missing position label", i)
		}
	}
}

func TestStartReading_Validation(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{gate: make(chan struct{})})

	rec := doJSON(e, http.MethodPost, "/v1/readings", `{"spread":"three_cards"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: expected 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/v1/readings", `{"user_id":"u1","spread":"pyramid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown spread: expected 400, got %d", rec.Code)
	}

	longQuestion := strings.Repeat("x", 501)
	rec = doJSON(e, http.MethodPost, "/v1/readings",
		`{"user_id":"u1","spread":"three_cards","question":"`+longQuestion+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized question: expected 400, got %d", rec.Code)
	}
}

func TestGetReading_NotFound(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{})
	rec := doJSON(e, http.MethodGet, "/v1/readings/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReadingLifecycleOverHTTP(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{})
	resp := startReading(t, e)

	// Wait for the clarifying questions.
	deadline := time.Now().Add(3 * time.Second)
	var snapshot httpadapter.SessionResponse
	for {
		rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get reading: status %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snapshot.State == string(domain.StateAwaitingAnswers) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never awaited answers, state %s", snapshot.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(snapshot.Questions) == 0 {
		t.Fatal("no clarifying questions in snapshot")
	}

	rec := doJSON(e, http.MethodPost, "/v1/readings/"+resp.SessionID+"/answers",
		`{"answers":["Not trying at all."]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit answers: status %d, body %s", rec.Code, rec.Body.String())
	}

	for {
		rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID, "")
		if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if domain.SessionState(snapshot.State).Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never terminated, state %s", snapshot.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if snapshot.Outcome == nil || !snapshot.Outcome.Completed {
		t.Fatalf("expected completed outcome, got %+v", snapshot.Outcome)
	}
	if snapshot.Outcome.Interpretation != "The path is open." {
		t.Errorf("unexpected interpretation: %q", snapshot.Outcome.Interpretation)
	}

	// A second answer set hits a terminal session.
	rec = doJSON(e, http.MethodPost, "/v1/readings/"+resp.SessionID+"/answers", `{"answers":["Again."]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("answers after completion: expected 409, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/v1/users/u1/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status %d", rec.Code)
	}
	var balance httpadapter.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatal(err)
	}
	if balance.Balance != 2 {
		t.Errorf("expected balance 2 after one reading, got %d", balance.Balance)
	}
}

func TestSubmitAnswers_WhileRunning(t *testing.T) {
	llm := &pipelineLLM{gate: make(chan struct{})}
	e := newTestServer(t, llm)
	resp := startReading(t, e)

	rec := doJSON(e, http.MethodPost, "/v1/readings/"+resp.SessionID+"/answers", `{"answers":["Too early."]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/v1/readings/"+resp.SessionID+"/answers", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty answers: expected 400, got %d", rec.Code)
	}

	close(llm.gate)
}

func TestCancelReading(t *testing.T) {
	llm := &pipelineLLM{gate: make(chan struct{})}
	e := newTestServer(t, llm)
	resp := startReading(t, e)

	rec := doJSON(e, http.MethodDelete, "/v1/readings/"+resp.SessionID, "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	close(llm.gate)

	rec = doJSON(e, http.MethodDelete, "/v1/readings/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", rec.Code)
	}
}

func TestStreamEvents_EndsWithOutcome(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{})
	resp := startReading(t, e)

	deadline := time.Now().Add(3 * time.Second)
	for {
		rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID, "")
		var snapshot httpadapter.SessionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snapshot.State == string(domain.StateAwaitingAnswers) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never awaited answers")
		}
		time.Sleep(5 * time.Millisecond)
	}
	doJSON(e, http.MethodPost, "/v1/readings/"+resp.SessionID+"/answers", `{"answers":["Yes."]}`)

	for {
		rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID, "")
		var snapshot httpadapter.SessionResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &snapshot)
		if domain.SessionState(snapshot.State).Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never terminated")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// All events are still buffered; the stream replays them and closes
	// after the outcome.
	rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stream: status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") {
		t.Error("stream missing progress events")
	}
	if !strings.Contains(body, "event: clarifying_questions") {
		t.Error("stream missing clarifying questions event")
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "}") || !strings.Contains(body, "event: outcome") {
		t.Errorf("stream does not end with the outcome event:\n%s", body)
	}
}

func TestGetBalance_UnknownUser(t *testing.T) {
	e := newTestServer(t, &pipelineLLM{})
	rec := doJSON(e, http.MethodGet, "/v1/users/ghost/balance", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetImage_NotRendered(t *testing.T) {
	llm := &pipelineLLM{gate: make(chan struct{})}
	e := newTestServer(t, llm)
	resp := startReading(t, e)

	rec := doJSON(e, http.MethodGet, "/v1/readings/"+resp.SessionID+"/image", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a renderer, got %d", rec.Code)
	}
	close(llm.gate)
}
