// Package postgres backs the credit ledger with a durable table so the
// front-end (and any other service) can read remaining balances.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS credit_accounts (
//	    user_id TEXT PRIMARY KEY,
//	    balance INTEGER NOT NULL CHECK (balance >= 0)
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randomtoy/oraculum/internal/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ReadBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE user_id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrUnknownUser
	}
	if err != nil {
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

func (s *Store) WriteBalance(ctx context.Context, userID string, balance int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE credit_accounts SET balance = $2 WHERE user_id = $1`, userID, balance,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (s *Store) EnsureAccount(ctx context.Context, userID string, initial int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credit_accounts (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`, userID, initial,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}
