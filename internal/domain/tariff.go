package domain

import "fmt"

// Tariff binds a model identifier, generation parameters, and credit costs
// to a named service tier. Nothing here is hardcoded in the pipeline.
type Tariff struct {
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	SessionCost     int     `json:"session_cost"`
	InitialBalance  int     `json:"initial_balance"`
}

// SettlementPolicy decides what a partially completed session is charged.
type SettlementPolicy string

const (
	SettleFull     SettlementPolicy = "full"
	SettleNone     SettlementPolicy = "none"
	SettleProrated SettlementPolicy = "prorated"
)

// ParseSettlementPolicy validates a policy name from configuration.
func ParseSettlementPolicy(s string) (SettlementPolicy, error) {
	switch SettlementPolicy(s) {
	case SettleFull, SettleNone, SettleProrated:
		return SettlementPolicy(s), nil
	default:
		return "", fmt.Errorf("invalid settlement policy %q", s)
	}
}
