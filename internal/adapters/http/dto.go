package http

import "github.com/randomtoy/oraculum/internal/domain"

// StartReadingRequest is the JSON body of POST /v1/readings.
type StartReadingRequest struct {
	UserID   string `json:"user_id"`
	Tariff   string `json:"tariff"`
	Spread   string `json:"spread"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Question string `json:"question"`
}

// StartReadingResponse returns the new session and the drawn spread.
type StartReadingResponse struct {
	SessionID string         `json:"session_id"`
	State     string         `json:"state"`
	Spread    SpreadResponse `json:"spread"`
}

type SpreadResponse struct {
	Type  string         `json:"type"`
	Name  string         `json:"name"`
	Cards []CardResponse `json:"cards"`
}

type CardResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Position      int                `json:"position"`
	PositionLabel string             `json:"position_label"`
	Orientation   domain.Orientation `json:"orientation"`
	Keywords      []string           `json:"keywords"`
	Short         string             `json:"short"`
}

// SessionResponse is the snapshot shape of GET /v1/readings/:id.
type SessionResponse struct {
	SessionID string                 `json:"session_id"`
	State     string                 `json:"state"`
	Questions []string               `json:"questions,omitempty"`
	Outcome   *domain.SessionOutcome `json:"outcome,omitempty"`
}

// AnswersRequest resumes a suspended session.
type AnswersRequest struct {
	Answers []string `json:"answers"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int    `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
