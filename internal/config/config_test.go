package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randomtoy/oraculum/internal/config"
	"github.com/randomtoy/oraculum/internal/domain"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENROUTER_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected addr: %s", cfg.HTTPAddr)
	}
	if cfg.DeckID != "major_arcana" {
		t.Errorf("unexpected deck: %s", cfg.DeckID)
	}
	if cfg.SettlementPolicy != domain.SettleNone {
		t.Errorf("unexpected settlement policy: %s", cfg.SettlementPolicy)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("unexpected retry attempts: %d", cfg.RetryMaxAttempts)
	}
	if cfg.StageTimeout != 5*time.Minute {
		t.Errorf("unexpected stage timeout: %s", cfg.StageTimeout)
	}
	if _, ok := cfg.Tariffs[cfg.DefaultTariff]; !ok {
		t.Errorf("default tariff %q not in tariff set", cfg.DefaultTariff)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without OPENROUTER_API_KEY")
	}
}

func TestLoad_InvalidSettlementPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("SETTLEMENT_POLICY", "refund-everyone")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid settlement policy")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("STAGE_TIMEOUT", "five minutes")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid STAGE_TIMEOUT")
	}
}

func TestLoad_TariffsFile(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "tariffs.json")
	body := `[
		{"name": "solo", "model": "test/model", "temperature": 0.5,
		 "max_tokens": 800, "session_cost": 2, "initial_balance": 6}
	]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TARIFFS_FILE", path)
	t.Setenv("DEFAULT_TARIFF", "solo")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tariff, ok := cfg.Tariffs["solo"]
	if !ok {
		t.Fatal("tariff solo not loaded")
	}
	if tariff.SessionCost != 2 || tariff.InitialBalance != 6 {
		t.Errorf("unexpected tariff credits: %+v", tariff)
	}
	if len(cfg.Tariffs) != 1 {
		t.Errorf("tariffs file should replace the default set, got %d tariffs", len(cfg.Tariffs))
	}
}

func TestLoad_TariffsFileRejectsNameless(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "tariffs.json")
	if err := os.WriteFile(path, []byte(`[{"model": "m"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TARIFFS_FILE", path)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for tariff without a name")
	}
}

func TestLoad_DefaultTariffMustExist(t *testing.T) {
	setRequired(t)
	t.Setenv("DEFAULT_TARIFF", "imperial")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown default tariff")
	}
}
