package ports

import (
	"context"
	"time"

	"github.com/randomtoy/oraculum/internal/domain"
)

// ReadingRecord is the append-only trace of one finished session.
type ReadingRecord struct {
	SessionID   string                `json:"session_id"`
	UserID      string                `json:"user_id"`
	Tariff      string                `json:"tariff"`
	SpreadType  domain.SpreadType     `json:"spread_type"`
	Profile     domain.Profile        `json:"profile"`
	Cards       []domain.DrawnCard    `json:"cards"`
	Stages      []domain.StageOutput  `json:"stages"`
	Outcome     domain.SessionOutcome `json:"outcome"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// ReadingLog is an append-only sink for finished readings.
type ReadingLog interface {
	Append(ctx context.Context, rec ReadingRecord) error
}
