// Package budget tracks perception-loop resource consumption and gates
// forward progress against configured limits.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"github.com/user/browserstudio/internal/types"
)

// Pricing, fixed per spec.md §3.
const (
	inputCostPerMillion  = 3.00
	outputCostPerMillion = 15.00
)

// frameTokenDivisor is the pixel-count divisor used by EstimateFrameTokens.
const frameTokenDivisor = 750

// Controller tracks cumulative usage against a fixed set of limits. It is
// safe for concurrent use, though the perception loop drives it
// sequentially by construction.
type Controller struct {
	mu sync.Mutex

	limits types.BudgetLimits
	start  time.Time

	cycles       int
	inputTokens  int
	outputTokens int
}

// New creates a Controller with the given limits, starting its elapsed-time
// clock immediately.
func New(limits types.BudgetLimits) *Controller {
	return &Controller{limits: limits, start: time.Now()}
}

// NewDefault creates a Controller with the spec's default limits.
func NewDefault() *Controller {
	return New(types.DefaultBudgetLimits())
}

// Decision is the result of a CanProceed check.
type Decision struct {
	Allowed bool
	Reason  string
}

// CanProceed checks limits in order (cycles, tokens, cost, duration) and
// returns the first violation found. Cost is recomputed from accumulated
// tokens on every call.
func (c *Controller) CanProceed() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cycles >= c.limits.MaxCycles {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Max cycles reached (%d)", c.limits.MaxCycles)}
	}

	totalTokens := c.inputTokens + c.outputTokens
	if totalTokens >= c.limits.MaxTokens {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Max tokens reached (%d)", c.limits.MaxTokens)}
	}

	cost := c.costLocked()
	if cost >= c.limits.MaxCostUSD {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Max cost reached ($%.2f)", c.limits.MaxCostUSD)}
	}

	if time.Since(c.start).Milliseconds() >= c.limits.MaxDurationMs {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Max duration reached (%dms)", c.limits.MaxDurationMs)}
	}

	return Decision{Allowed: true}
}

// OnCycleComplete increments the cycle counter and adds to token totals.
// The controller does not enforce that CanProceed allowed the cycle; the
// caller is responsible for checking first.
func (c *Controller) OnCycleComplete(usage types.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cycles++
	c.inputTokens += usage.Input
	c.outputTokens += usage.Output
}

// Snapshot returns a point-in-time read of accumulated usage.
func (c *Controller) Snapshot() types.BudgetSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.BudgetSnapshot{
		Cycles:       c.cycles,
		InputTokens:  c.inputTokens,
		OutputTokens: c.outputTokens,
		CostUSD:      c.costLocked(),
		Elapsed:      time.Since(c.start),
		Limits:       c.limits,
	}
}

// Remaining returns the cycles and tokens still available before a denial,
// clamped at zero. Used by the Audit Logger's budget_remaining field.
func (c *Controller) Remaining() types.BudgetRemaining {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyclesLeft := c.limits.MaxCycles - c.cycles
	if cyclesLeft < 0 {
		cyclesLeft = 0
	}
	tokensLeft := c.limits.MaxTokens - c.inputTokens - c.outputTokens
	if tokensLeft < 0 {
		tokensLeft = 0
	}
	return types.BudgetRemaining{Cycles: cyclesLeft, Tokens: tokensLeft}
}

func (c *Controller) costLocked() float64 {
	return EstimateCost(c.inputTokens, c.outputTokens)
}

// EstimateCost computes the fixed-rate dollar cost for the given token
// counts: input·$3/M + output·$15/M.
func EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*inputCostPerMillion + float64(outputTokens)/1e6*outputCostPerMillion
}

// EstimateFrameTokens estimates the token cost of a captured screenshot
// from its pixel dimensions: ceil(w*h/750).
func EstimateFrameTokens(width, height int) int {
	pixels := width * height
	if pixels <= 0 {
		return 0
	}
	return (pixels + frameTokenDivisor - 1) / frameTokenDivisor
}

// textCodec is resolved lazily and cached; tiktoken-go ships its
// encoding tables as package data, not a network call, but Get still does
// non-trivial setup work.
var (
	textCodecOnce sync.Once
	textCodec     tokenizer.Codec
	textCodecErr  error
)

// EstimateTextTokens estimates the token count of s using a cl100k-style
// encoding. It is a fallback for when the model API response omits a usage
// block; on tokenizer initialization failure it falls back to a
// characters/4 heuristic rather than failing the caller.
func EstimateTextTokens(s string) int {
	textCodecOnce.Do(func() {
		textCodec, textCodecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})

	if textCodecErr != nil || textCodec == nil {
		return (len(s) + 3) / 4
	}

	ids, _, err := textCodec.Encode(s)
	if err != nil {
		return (len(s) + 3) / 4
	}

	return len(ids)
}
