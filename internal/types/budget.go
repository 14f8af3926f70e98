package types

import "time"

// BudgetLimits are the immutable ceilings enforced by the Budget Controller.
type BudgetLimits struct {
	MaxCycles     int
	MaxTokens     int
	MaxCostUSD    float64
	MaxDurationMs int64
}

// DefaultBudgetLimits returns the spec-mandated defaults.
func DefaultBudgetLimits() BudgetLimits {
	return BudgetLimits{
		MaxCycles:     100,
		MaxTokens:     500000,
		MaxCostUSD:    5.00,
		MaxDurationMs: 600000,
	}
}

// BudgetSnapshot is a point-in-time read of accumulated usage, safe to
// persist or hand to a caller without exposing the controller's clock.
type BudgetSnapshot struct {
	Cycles       int           `json:"cycles"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Elapsed      time.Duration `json:"elapsed_ms"`
	Limits       BudgetLimits  `json:"limits"`
}
