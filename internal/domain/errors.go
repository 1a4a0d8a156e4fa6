package domain

import "errors"

var (
	ErrDeckNotFound     = errors.New("deck not found")
	ErrUnknownSpread    = errors.New("unknown spread type")
	ErrDeckTooSmall     = errors.New("spread needs more cards than the deck holds")
	ErrStageNotFound    = errors.New("stage template not registered")
	ErrUnknownUser      = errors.New("unknown user account")
	ErrUnknownTariff    = errors.New("unknown tariff")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAwaitingInput = errors.New("session is not awaiting answers")
	ErrSessionTerminal  = errors.New("session already finished")
	ErrDuplicateStage   = errors.New("duplicate stage name in session context")
)
