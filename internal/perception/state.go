package perception

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/audit"
	"github.com/user/browserstudio/internal/budget"
	"github.com/user/browserstudio/internal/executor"
	"github.com/user/browserstudio/internal/history"
	"github.com/user/browserstudio/internal/safety"
	"github.com/user/browserstudio/internal/sampler"
	"github.com/user/browserstudio/internal/types"
	"github.com/user/browserstudio/internal/vision"
)

// runState is the mutable state of one Run call: the cycle log, the
// consecutive-error counter, and every collaborator scoped to this task.
type runState struct {
	loop *Loop

	audit     *audit.Logger
	budgetCtl *budget.Controller
	sampler   *sampler.Sampler
	policy    *safety.Policy
	exec      *executor.Executor
	proxy     *pageProxy

	pageName string
	task     string

	cycles            []types.CycleEntry
	consecutiveErrors int
}

func (rs *runState) log() *zap.Logger {
	if rs.loop.logger == nil {
		return zap.NewNop()
	}
	return rs.loop.logger
}

// run executes cycles until a terminal result is produced.
func (rs *runState) run(ctx context.Context) types.LoopResult {
	cfg := rs.loop.cfg

	for cycle := 0; cycle < cfg.MaxCycles; cycle++ {
		terminal, result := rs.runCycleSafely(ctx, cycle)
		if terminal {
			return result
		}
		if rs.consecutiveErrors >= cfg.MaxConsecutiveErrors {
			return types.LoopResult{
				Success:     false,
				Summary:     fmt.Sprintf("Too many consecutive errors (%d)", cfg.MaxConsecutiveErrors),
				TotalCycles: cycle + 1,
				BudgetUsage: rs.budgetCtl.Snapshot(),
			}
		}
	}

	return types.LoopResult{
		Success:     false,
		Summary:     fmt.Sprintf("Max cycles reached (%d)", cfg.MaxCycles),
		TotalCycles: cfg.MaxCycles,
		BudgetUsage: rs.budgetCtl.Snapshot(),
	}
}

// runCycleSafely wraps runCycle with a panic recovery that converts any
// unexpected exception into a synthetic "error" cycle entry, per the
// loop's "on any unexpected exception" clause.
func (rs *runState) runCycleSafely(ctx context.Context, cycle int) (terminal bool, result types.LoopResult) {
	defer func() {
		if r := recover(); r != nil {
			entry := types.CycleEntry{
				Cycle:     cycle,
				Timestamp: time.Now(),
				Action:    types.Action{Kind: types.ActionError},
				Result:    types.ActionResult{Success: false, Error: fmt.Sprintf("%v", r)},
			}
			rs.cycles = append(rs.cycles, entry)
			_ = rs.audit.LogCycle(entry, nil)
			rs.consecutiveErrors++
			terminal = false
		}
	}()

	return rs.runCycle(ctx, cycle)
}

func (rs *runState) runCycle(ctx context.Context, cycle int) (bool, types.LoopResult) {
	cfg := rs.loop.cfg

	decision := rs.budgetCtl.CanProceed()
	if !decision.Allowed {
		return true, types.LoopResult{
			Success:     false,
			Summary:     decision.Reason,
			TotalCycles: cycle,
			BudgetUsage: rs.budgetCtl.Snapshot(),
		}
	}

	frame, err := rs.captureFrame(ctx)
	if err != nil {
		rs.recordCycleError(cycle, err)
		return false, types.LoopResult{}
	}

	_, _ = rs.sampler.HasChanged(frame)

	framePath, ferr := rs.audit.SaveFrame(cycle, frame)
	if ferr != nil {
		rs.log().Warn("perception: save frame failed", zap.Int("cycle", cycle), zap.Error(ferr))
		framePath = ""
	}

	ariaSnapshot, refs := rs.snapshotAccessibility(ctx)
	if refs != nil {
		rs.proxy.current.SetRefs(refs)
	}

	historyStr := history.Compress(rs.cycles, cfg.MaxDetailedHistory)

	effectiveTask := rs.task
	if isStuck(rs.cycles) {
		effectiveTask = rs.task + "\n\nYour last three actions were identical and did not change the page. Consider a different approach."
	}

	pageURL := rs.proxy.current.URL(ctx)

	analyzeCtx, cancel := context.WithTimeout(ctx, cfg.APITimeout)
	analysis, verr := rs.loop.vision.AnalyzeFrame(analyzeCtx, vision.AnalyzeInput{
		FrameBase64:  frameBase64(frame),
		AriaSnapshot: ariaSnapshot,
		History:      historyStr,
		Task:         effectiveTask,
	})
	cancel()
	if verr != nil {
		rs.recordCycleError(cycle, verr)
		return false, types.LoopResult{}
	}

	action := analysis.Action

	if sdec := rs.policy.Validate(action); !sdec.Allowed {
		entry := rs.buildEntry(cycle, pageURL, framePath, action, analysis, types.ActionResult{
			Success: false,
			Error:   "Blocked: " + sdec.Reason,
		}, 0)
		rs.appendEntry(entry)
		rs.consecutiveErrors++
		return false, types.LoopResult{}
	}

	switch action.Kind {
	case types.ActionDone:
		entry := rs.buildEntry(cycle, pageURL, framePath, action, analysis, types.ActionResult{Success: true}, 0)
		rs.appendEntry(entry)
		return true, types.LoopResult{
			Success:       action.BoolArg("success", true),
			Summary:       action.StringArg("summary"),
			TotalCycles:   cycle + 1,
			ExtractedData: extractedData(action),
			BudgetUsage:   rs.budgetCtl.Snapshot(),
		}
	case types.ActionFail:
		entry := rs.buildEntry(cycle, pageURL, framePath, action, analysis, types.ActionResult{Success: true}, 0)
		rs.appendEntry(entry)
		return true, types.LoopResult{
			Success:     false,
			Summary:     action.StringArg("reason"),
			TotalCycles: cycle + 1,
			BudgetUsage: rs.budgetCtl.Snapshot(),
		}
	}

	dispatchStart := time.Now()
	result := rs.exec.Execute(ctx, action)
	duration := time.Since(dispatchStart).Milliseconds()

	entry := rs.buildEntry(cycle, pageURL, framePath, action, analysis, result, duration)
	rs.appendEntry(entry)

	if !result.Success {
		rs.consecutiveErrors++
	} else {
		rs.consecutiveErrors = 0
	}

	rs.settle(ctx, action)

	return false, types.LoopResult{}
}

func (rs *runState) captureFrame(ctx context.Context) ([]byte, error) {
	cfg := rs.loop.cfg

	frame, err := rs.proxy.current.Screenshot(ctx, cfg.Quality)
	if err == nil {
		return frame, nil
	}
	if !isTargetClosedErr(err) {
		return nil, err
	}

	newPage, ok := rs.loop.client.Get(rs.pageName)
	if !ok {
		return nil, err
	}
	rs.proxy.current = newPage

	waitCtx, cancel := context.WithTimeout(ctx, cfg.lifecycleWait())
	newPage.WaitDOMContentLoaded(waitCtx)
	cancel()

	rs.sampler.ForceCapture()
	return newPage.Screenshot(ctx, cfg.Quality)
}

func (rs *runState) snapshotAccessibility(ctx context.Context) (string, map[string]string) {
	cfg := rs.loop.cfg

	htmlContent, err := rs.proxy.current.OuterHTML(ctx)
	if err != nil {
		return "(ARIA snapshot unavailable)", nil
	}

	snapshot, refs, err := rs.loop.aria.Snapshot(htmlContent)
	if err != nil {
		return "(ARIA snapshot unavailable)", nil
	}

	return truncateSnapshot(snapshot, cfg.AriaCharCap), refs
}

func (rs *runState) recordCycleError(cycle int, err error) {
	entry := types.CycleEntry{
		Cycle:     cycle,
		Timestamp: time.Now(),
		Action:    types.Action{Kind: types.ActionError},
		Result:    types.ActionResult{Success: false, Error: err.Error()},
	}
	rs.cycles = append(rs.cycles, entry)
	_ = rs.audit.LogCycle(entry, nil)
	rs.consecutiveErrors++
}

func (rs *runState) buildEntry(cycle int, pageURL, framePath string, action types.Action, analysis vision.AnalyzeResult, result types.ActionResult, durationMs int64) types.CycleEntry {
	usage := analysis.Usage
	return types.CycleEntry{
		Cycle:      cycle,
		Timestamp:  time.Now(),
		PageURL:    pageURL,
		FramePath:  framePath,
		Action:     action,
		Reasoning:  analysis.Reasoning,
		Result:     result,
		Tokens:     &usage,
		DurationMs: durationMs,
	}
}

func (rs *runState) appendEntry(entry types.CycleEntry) {
	rs.cycles = append(rs.cycles, entry)
	rs.budgetCtl.OnCycleComplete(*entry.Tokens)
	remaining := rs.budgetCtl.Remaining()
	_ = rs.audit.LogCycle(entry, &remaining)
}

func (rs *runState) settle(ctx context.Context, action types.Action) {
	cfg := rs.loop.cfg

	switch action.Kind {
	case types.ActionNavigate:
		waitCtx, cancel := context.WithTimeout(ctx, cfg.lifecycleWait())
		rs.proxy.current.WaitNetworkIdle(waitCtx)
		cancel()
		rs.sampler.ForceCapture()
	case types.ActionWait:
		// the action already waited.
	default:
		select {
		case <-time.After(time.Duration(cfg.SettleTimeMs) * time.Millisecond):
		case <-ctx.Done():
		}
	}
}
