// Package ledger tracks per-user credit balances and settles sessions
// against them. Authorization never mutates; settlement happens exactly once
// per session id no matter how often finalization is retried.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ports"
)

// SettleRequest describes how a session ended, for debit purposes.
type SettleRequest struct {
	SessionID       string
	UserID          string
	Tariff          domain.Tariff
	Completed       bool
	CompletedStages int
	TotalStages     int
	Policy          domain.SettlementPolicy
}

// Ledger serializes authorize/settle per account so two concurrent sessions
// cannot both pass authorization on a balance sufficient for only one.
type Ledger struct {
	store ports.BalanceStore

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
	settled  map[string]int // session id -> balance after settlement
}

func New(store ports.BalanceStore) *Ledger {
	return &Ledger{
		store:    store,
		accounts: make(map[string]*sync.Mutex),
		settled:  make(map[string]int),
	}
}

func (l *Ledger) accountLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.accounts[userID]
	if !ok {
		m = &sync.Mutex{}
		l.accounts[userID] = m
	}
	return m
}

// EnsureAccount creates the user's account with the tariff's initial
// balance if it does not exist yet.
func (l *Ledger) EnsureAccount(ctx context.Context, userID string, tariff domain.Tariff) error {
	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return l.store.EnsureAccount(ctx, userID, tariff.InitialBalance)
}

// Balance returns the user's remaining credits without mutation.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.ReadBalance(ctx, userID)
}

// Authorize reports whether the user can afford one session at the tariff.
// The balance is only read, never debited here.
func (l *Ledger) Authorize(ctx context.Context, userID string, tariff domain.Tariff) (bool, error) {
	lock := l.accountLock(userID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := l.store.ReadBalance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("read balance for %s: %w", userID, err)
	}
	return balance >= tariff.SessionCost, nil
}

// Settle debits the account per the outcome and returns the new balance.
// Calling it again for the same session id returns the recorded balance
// without a second debit.
func (l *Ledger) Settle(ctx context.Context, req SettleRequest) (int, error) {
	lock := l.accountLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	if balance, ok := l.settled[req.SessionID]; ok {
		l.mu.Unlock()
		return balance, nil
	}
	l.mu.Unlock()

	balance, err := l.store.ReadBalance(ctx, req.UserID)
	if err != nil {
		return 0, fmt.Errorf("read balance for %s: %w", req.UserID, err)
	}

	debit := l.debitFor(req)
	if debit > balance {
		// Authorization guaranteed cover at session start; clamp so the
		// account can never go negative.
		debit = balance
	}

	newBalance := balance - debit
	if debit > 0 {
		if err := l.store.WriteBalance(ctx, req.UserID, newBalance); err != nil {
			return 0, fmt.Errorf("write balance for %s: %w", req.UserID, err)
		}
	}

	l.mu.Lock()
	l.settled[req.SessionID] = newBalance
	l.mu.Unlock()

	return newBalance, nil
}

func (l *Ledger) debitFor(req SettleRequest) int {
	if req.Completed {
		return req.Tariff.SessionCost
	}
	switch req.Policy {
	case domain.SettleNone:
		return 0
	case domain.SettleProrated:
		if req.TotalStages <= 0 {
			return 0
		}
		return req.Tariff.SessionCost * req.CompletedStages / req.TotalStages
	default: // domain.SettleFull
		return req.Tariff.SessionCost
	}
}
