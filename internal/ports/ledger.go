package ports

import "context"

// BalanceStore is the durable credit balance backing the ledger. Other parts
// of the system (the front-end balance display) read it too, so writes must
// be visible outside this process.
type BalanceStore interface {
	// ReadBalance returns the remaining credits for a user, or
	// domain.ErrUnknownUser if no account exists.
	ReadBalance(ctx context.Context, userID string) (int, error)
	// WriteBalance replaces a user's balance.
	WriteBalance(ctx context.Context, userID string, balance int) error
	// EnsureAccount creates the account with an initial balance if it does
	// not exist yet. Existing balances are left untouched.
	EnsureAccount(ctx context.Context, userID string, initial int) error
}
