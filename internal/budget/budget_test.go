package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/browserstudio/internal/types"
)

func TestCanProceed_AllowsWithinLimits(t *testing.T) {
	c := NewDefault()
	d := c.CanProceed()
	require.True(t, d.Allowed)
	require.Empty(t, d.Reason)
}

func TestCanProceed_DeniesAtMaxCycles(t *testing.T) {
	c := New(types.BudgetLimits{MaxCycles: 2, MaxTokens: 1e9, MaxCostUSD: 1e9, MaxDurationMs: 1e9})

	c.OnCycleComplete(types.TokenUsage{Input: 1, Output: 1})
	require.True(t, c.CanProceed().Allowed)

	c.OnCycleComplete(types.TokenUsage{Input: 1, Output: 1})
	d := c.CanProceed()
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "Max cycles")
}

func TestCanProceed_DeniesAtMaxTokens(t *testing.T) {
	c := New(types.BudgetLimits{MaxCycles: 1000, MaxTokens: 100, MaxCostUSD: 1e9, MaxDurationMs: 1e9})

	c.OnCycleComplete(types.TokenUsage{Input: 60, Output: 60})
	d := c.CanProceed()
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "Max tokens")
}

func TestCanProceed_DeniesAtMaxCost(t *testing.T) {
	// Boundary scenario: limits {maxCycles:1000, maxTokens:1e7, maxCostUSD:0.01,
	// maxDurationMs:6e5} with one cycle reporting {input:1000, output:1000}
	// costs 1000/1e6*3 + 1000/1e6*15 = 0.018, which exceeds 0.01.
	c := New(types.BudgetLimits{MaxCycles: 1000, MaxTokens: 1e7, MaxCostUSD: 0.01, MaxDurationMs: 6e5})

	c.OnCycleComplete(types.TokenUsage{Input: 1000, Output: 1000})
	d := c.CanProceed()
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "Max cost")
}

func TestCanProceed_DenialIsMonotonic(t *testing.T) {
	// Once denied, further cycles never flip a denial back to allowed.
	c := New(types.BudgetLimits{MaxCycles: 3, MaxTokens: 1e9, MaxCostUSD: 1e9, MaxDurationMs: 1e9})

	for i := 0; i < 3; i++ {
		c.OnCycleComplete(types.TokenUsage{Input: 1, Output: 1})
	}
	require.False(t, c.CanProceed().Allowed)

	c.OnCycleComplete(types.TokenUsage{Input: 1, Output: 1})
	require.False(t, c.CanProceed().Allowed)
}

func TestOnCycleComplete_AccumulatesMonotonically(t *testing.T) {
	c := NewDefault()

	c.OnCycleComplete(types.TokenUsage{Input: 10, Output: 20})
	snap1 := c.Snapshot()
	require.Equal(t, 1, snap1.Cycles)
	require.Equal(t, 10, snap1.InputTokens)
	require.Equal(t, 20, snap1.OutputTokens)

	c.OnCycleComplete(types.TokenUsage{Input: 5, Output: 5})
	snap2 := c.Snapshot()
	require.Equal(t, 2, snap2.Cycles)
	require.Equal(t, 15, snap2.InputTokens)
	require.Equal(t, 25, snap2.OutputTokens)
	require.GreaterOrEqual(t, snap2.CostUSD, snap1.CostUSD)
}

func TestRemaining_ClampsAtZero(t *testing.T) {
	c := New(types.BudgetLimits{MaxCycles: 1, MaxTokens: 10, MaxCostUSD: 1e9, MaxDurationMs: 1e9})

	c.OnCycleComplete(types.TokenUsage{Input: 100, Output: 100})
	r := c.Remaining()
	require.Equal(t, 0, r.Cycles)
	require.Equal(t, 0, r.Tokens)
}

func TestEstimateFrameTokens(t *testing.T) {
	require.Equal(t, 14, EstimateFrameTokens(100, 100))
	require.Equal(t, 1049, EstimateFrameTokens(1024, 768))
	require.Equal(t, 0, EstimateFrameTokens(0, 0))
}

func TestEstimateCost(t *testing.T) {
	require.InDelta(t, 0.018, EstimateCost(1000, 1000), 1e-9)
	require.Equal(t, 0.0, EstimateCost(0, 0))
}

func TestEstimateTextTokens_NonEmpty(t *testing.T) {
	n := EstimateTextTokens("hello world! hello world!")
	require.Greater(t, n, 0)
	require.Equal(t, 0, EstimateTextTokens(""))
}
