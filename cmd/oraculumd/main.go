package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/oraculum/internal/adapters/decks"
	httpadapter "github.com/randomtoy/oraculum/internal/adapters/http"
	ledgermem "github.com/randomtoy/oraculum/internal/adapters/ledger/memory"
	ledgerpg "github.com/randomtoy/oraculum/internal/adapters/ledger/postgres"
	"github.com/randomtoy/oraculum/internal/adapters/llm/openrouter"
	"github.com/randomtoy/oraculum/internal/adapters/readinglog/jsonl"
	"github.com/randomtoy/oraculum/internal/adapters/render"
	"github.com/randomtoy/oraculum/internal/app"
	"github.com/randomtoy/oraculum/internal/config"
	"github.com/randomtoy/oraculum/internal/ledger"
	"github.com/randomtoy/oraculum/internal/ports"
	"github.com/randomtoy/oraculum/internal/prompts"
)

// stdRNG delegates to math/rand/v2 (auto-seeded).
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	promptStore, err := prompts.NewStore()
	if err != nil {
		logger.Error("failed to load prompt templates", "error", err)
		os.Exit(1)
	}

	var balances ports.BalanceStore
	if cfg.LedgerDSN != "" {
		pg, err := ledgerpg.NewStore(context.Background(), cfg.LedgerDSN)
		if err != nil {
			logger.Error("failed to connect ledger store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		balances = pg
		logger.Info("credit ledger backed by postgres")
	} else {
		balances = ledgermem.NewStore()
		logger.Info("credit ledger in memory")
	}

	var renderer ports.SpreadRenderer
	if cfg.RendererURL != "" {
		client := render.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.RendererURL)
		renderer, err = render.NewCachingRenderer(client, cfg.RenderCacheSize)
		if err != nil {
			logger.Error("failed to build render cache", "error", err)
			os.Exit(1)
		}
	}

	var readings ports.ReadingLog
	if cfg.ReadingLogPath != "" {
		readingLog, err := jsonl.Open(cfg.ReadingLogPath)
		if err != nil {
			logger.Error("failed to open reading log", "error", err)
			os.Exit(1)
		}
		defer readingLog.Close()
		readings = readingLog
	}

	llmClient := openrouter.NewClient(
		&http.Client{Timeout: cfg.AttemptTimeout},
		openrouter.Config{
			APIKey:         cfg.OpenRouterAPIKey,
			BaseURL:        cfg.OpenRouterBaseURL,
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			AttemptTimeout: cfg.AttemptTimeout,
			CallBudget:     cfg.StageTimeout,
		},
		logger,
	)

	creditLedger := ledger.New(balances)

	svc := app.NewReadingService(app.Config{
		DeckID:           cfg.DeckID,
		Tariffs:          cfg.Tariffs,
		DefaultTariff:    cfg.DefaultTariff,
		StageTimeout:     cfg.StageTimeout,
		SettlementPolicy: cfg.SettlementPolicy,
	}, app.Deps{
		Decks:    decks.NewEmbeddedStore(),
		Prompts:  promptStore,
		LLM:      llmClient,
		Ledger:   creditLedger,
		Renderer: renderer,
		Readings: readings,
		RNG:      stdRNG{},
		Logger:   logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))

	handler := httpadapter.NewHandler(svc, creditLedger)
	handler.Register(e)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
