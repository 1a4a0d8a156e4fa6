package ports

import "context"

// GenerationParams tune a single completion. Values come from the tariff.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

// LLMRequest is one fully rendered request to the model backend.
type LLMRequest struct {
	Model  string
	System string
	Prompt string
	Params GenerationParams
}

// Completer issues one logical completion against the model backend.
//
// Implementations absorb transient backend failures (timeouts, rate limits,
// 5xx) with their own retry policy; any error returned here is fatal for the
// calling stage and carries a *domain.Failure in its chain.
type Completer interface {
	Complete(ctx context.Context, req LLMRequest) (string, error)
}
