// Package openrouter implements ports.Completer against the OpenRouter
// chat-completions API. Transient backend failures (connection errors,
// timeouts, 429, 5xx) are retried here with exponential backoff and jitter;
// callers only ever see success or a classified fatal failure.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/randomtoy/oraculum/internal/domain"
	"github.com/randomtoy/oraculum/internal/ports"
)

// Config tunes the retry loop. All values come from service configuration.
type Config struct {
	APIKey  string
	BaseURL string
	// MaxAttempts bounds how many times one Complete call hits the backend.
	MaxAttempts int
	// InitialBackoff and MaxBackoff shape the exponential wait between
	// attempts; the backoff library adds jitter.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
	// CallBudget is the wall-clock ceiling for the whole call, retries and
	// waits included.
	CallBudget time.Duration
}

type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{httpClient: httpClient, cfg: cfg, logger: logger}
}

// chatRequest / chatResponse mirror the OpenAI-compatible API shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete issues one logical completion, retrying transient failures until
// MaxAttempts or CallBudget is exhausted. Malformed responses are fatal on
// first sight: they indicate a contract violation, not transience.
func (c *Client) Complete(ctx context.Context, req ports.LLMRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallBudget)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff

	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := c.attempt(ctx, req)
		if err != nil {
			c.logger.WarnContext(ctx, "completion attempt failed",
				"model", req.Model, "attempt", attempt, "error", err)
		}
		return text, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(c.cfg.MaxAttempts)))
	if err != nil {
		return "", c.classify(err)
	}
	return text, nil
}

func (c *Client) attempt(ctx context.Context, req ports.LLMRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Params.Temperature,
		MaxTokens:   req.Params.MaxTokens,
	})
	if err != nil {
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			fmt.Errorf("marshal request: %w", err)))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			fmt.Errorf("build request: %w", err)))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection errors and attempt timeouts are transient.
		return "", fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(respBody, 200))
	default:
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(respBody, 200))))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			fmt.Errorf("decode response: %w", err)))
	}
	if len(chatResp.Choices) == 0 {
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			errors.New("no choices in response")))
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", backoff.Permanent(domain.NewFailure(domain.FailureBackend,
			errors.New("empty completion content")))
	}
	return content, nil
}

// classify converts a retry-loop exit into the session failure taxonomy.
func (c *Client) classify(err error) error {
	var f *domain.Failure
	if errors.As(err, &f) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewFailure(domain.FailureCancelled, err)
	}
	// Retries exhausted on transient failures, or the call budget ran out.
	return domain.NewFailure(domain.FailureTimeout, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
