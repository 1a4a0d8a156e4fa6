package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/randomtoy/oraculum/internal/adapters/ledger/memory"
	"github.com/randomtoy/oraculum/internal/domain"
)

func TestStore_UnknownUser(t *testing.T) {
	s := memory.NewStore()

	if _, err := s.ReadBalance(context.Background(), "ghost"); !errors.Is(err, domain.ErrUnknownUser) {
		t.Errorf("read: expected ErrUnknownUser, got %v", err)
	}
	if err := s.WriteBalance(context.Background(), "ghost", 5); !errors.Is(err, domain.ErrUnknownUser) {
		t.Errorf("write: expected ErrUnknownUser, got %v", err)
	}
}

func TestStore_EnsureThenReadWrite(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.EnsureAccount(ctx, "u1", 10); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	balance, err := s.ReadBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if balance != 10 {
		t.Errorf("expected initial balance 10, got %d", balance)
	}

	if err := s.WriteBalance(ctx, "u1", 4); err != nil {
		t.Fatalf("write: %v", err)
	}
	balance, _ = s.ReadBalance(ctx, "u1")
	if balance != 4 {
		t.Errorf("expected balance 4, got %d", balance)
	}

	// A second ensure is a no-op for an existing account.
	if err := s.EnsureAccount(ctx, "u1", 10); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	balance, _ = s.ReadBalance(ctx, "u1")
	if balance != 4 {
		t.Errorf("ensure reset the balance to %d", balance)
	}
}
