// Package audit persists per-cycle perception loop records, frames, and the
// terminal run summary for a single task.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/browserstudio/internal/types"
)

const dirPerm = 0o755
const filePerm = 0o644

// Logger is scoped to one task id and writes into
// <outDir>/<taskID>/{cycles.jsonl,summary.json,frames/cycle-<n>.jpg}.
//
// Writes are best-effort synchronous; it does not fsync, matching the
// "no crash recovery guarantees beyond what the OS page cache offers"
// posture of a dev-facing audit trail.
type Logger struct {
	mu      sync.Mutex
	taskDir string
	cycles  *os.File
}

// New creates the task directory tree and opens cycles.jsonl for
// append-only writes.
func New(outDir, taskID string) (*Logger, error) {
	taskDir := filepath.Join(outDir, taskID)
	if err := os.MkdirAll(filepath.Join(taskDir, "frames"), dirPerm); err != nil {
		return nil, fmt.Errorf("audit: create task dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(taskDir, "cycles.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return nil, fmt.Errorf("audit: open cycles.jsonl: %w", err)
	}

	return &Logger{taskDir: taskDir, cycles: f}, nil
}

// cycleRecord is the flattened, snake_case persistence shape of a
// CycleEntry; the in-memory representation keeps its natural casing.
type cycleRecord struct {
	Cycle           int                    `json:"cycle"`
	Timestamp       time.Time              `json:"timestamp"`
	PageURL         string                 `json:"page_url"`
	FramePath       string                 `json:"frame_path,omitempty"`
	Action          actionRecord           `json:"action"`
	Reasoning       string                 `json:"reasoning,omitempty"`
	Result          resultRecord           `json:"result"`
	Tokens          *types.TokenUsage      `json:"tokens,omitempty"`
	DurationMs      int64                  `json:"duration_ms"`
	BudgetRemaining *types.BudgetRemaining `json:"budget_remaining,omitempty"`
}

type actionRecord struct {
	Name  types.ActionKind       `json:"name"`
	Input map[string]interface{} `json:"input"`
}

type resultRecord struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// LogCycle appends one line-delimited JSON record to cycles.jsonl.
// remaining is nil when the caller has no budget controller to consult.
func (l *Logger) LogCycle(entry types.CycleEntry, remaining *types.BudgetRemaining) error {
	record := cycleRecord{
		Cycle:           entry.Cycle,
		Timestamp:       entry.Timestamp,
		PageURL:         entry.PageURL,
		FramePath:       entry.FramePath,
		Action:          actionRecord{Name: entry.Action.Kind, Input: entry.Action.Input},
		Reasoning:       entry.Reasoning,
		Result:          resultRecord{Success: entry.Result.Success, Error: entry.Result.Error},
		Tokens:          entry.Tokens,
		DurationMs:      entry.DurationMs,
		BudgetRemaining: remaining,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: marshal cycle record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.cycles.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write cycle record: %w", err)
	}
	return nil
}

// SaveFrame writes frames/cycle-<n>.jpg, overwriting any existing file.
func (l *Logger) SaveFrame(cycleIndex int, jpegBytes []byte) (string, error) {
	path := filepath.Join(l.taskDir, "frames", fmt.Sprintf("cycle-%d.jpg", cycleIndex))
	if err := os.WriteFile(path, jpegBytes, filePerm); err != nil {
		return "", fmt.Errorf("audit: write frame: %w", err)
	}
	return path, nil
}

type summaryDoc struct {
	Result      types.LoopResult    `json:"result"`
	Budget      types.BudgetSnapshot `json:"budget"`
	CompletedAt time.Time           `json:"completed_at"`
}

// SaveSummary writes summary.json with the terminal loop result and budget
// usage.
func (l *Logger) SaveSummary(result types.LoopResult, usage types.BudgetSnapshot) error {
	doc := summaryDoc{Result: result, Budget: usage, CompletedAt: time.Now()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal summary: %w", err)
	}

	if err := os.WriteFile(filepath.Join(l.taskDir, "summary.json"), data, filePerm); err != nil {
		return fmt.Errorf("audit: write summary: %w", err)
	}
	return nil
}

// Close closes the underlying cycles.jsonl file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles.Close()
}

// TaskID formats the spec's perception-<unixMillis> task id.
func TaskID(now time.Time) string {
	return fmt.Sprintf("perception-%d", now.UnixMilli())
}

// RemainingFrom derives budget_remaining from a snapshot, for callers that
// hold a budget.Controller rather than raw limits.
func RemainingFrom(snapshot types.BudgetSnapshot) types.BudgetRemaining {
	cyclesLeft := snapshot.Limits.MaxCycles - snapshot.Cycles
	if cyclesLeft < 0 {
		cyclesLeft = 0
	}
	tokensLeft := snapshot.Limits.MaxTokens - snapshot.InputTokens - snapshot.OutputTokens
	if tokensLeft < 0 {
		tokensLeft = 0
	}
	return types.BudgetRemaining{Cycles: cyclesLeft, Tokens: tokensLeft}
}
