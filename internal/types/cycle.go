package types

import "time"

// TokenUsage records input/output token counts for one model call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// BudgetRemaining is the derived "room left" snapshot embedded in a cycle
// entry's persisted form.
type BudgetRemaining struct {
	Cycles int `json:"cycles"`
	Tokens int `json:"tokens"`
}

// CycleEntry is the in-memory, naturally-cased record of one perception
// loop iteration. Written exactly once per cycle by the Audit Logger.
type CycleEntry struct {
	Cycle      int
	Timestamp  time.Time
	PageURL    string
	FramePath  string
	Action     Action
	Reasoning  string
	Result     ActionResult
	Tokens     *TokenUsage
	DurationMs int64
}

// LoopResult is the terminal outcome of a perception loop run.
type LoopResult struct {
	Success       bool
	Summary       string
	TotalCycles   int
	ExtractedData map[string]interface{}
	BudgetUsage   BudgetSnapshot
}
