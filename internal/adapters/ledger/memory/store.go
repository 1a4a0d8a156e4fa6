// Package memory provides an in-process BalanceStore, used in tests and in
// single-node deployments without a database.
package memory

import (
	"context"
	"sync"

	"github.com/randomtoy/oraculum/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	balances map[string]int
}

func NewStore() *Store {
	return &Store{balances: make(map[string]int)}
}

func (s *Store) ReadBalance(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, ok := s.balances[userID]
	if !ok {
		return 0, domain.ErrUnknownUser
	}
	return balance, nil
}

func (s *Store) WriteBalance(_ context.Context, userID string, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		return domain.ErrUnknownUser
	}
	s.balances[userID] = balance
	return nil
}

func (s *Store) EnsureAccount(_ context.Context, userID string, initial int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		s.balances[userID] = initial
	}
	return nil
}
