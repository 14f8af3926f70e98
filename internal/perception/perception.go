// Package perception implements the capture-reason-act agent loop: it
// drives a registered page toward a natural-language task by repeatedly
// screenshotting it, asking a vision model for the next action, and
// dispatching that action through the Action Executor, all under a fixed
// cycle/token/cost/duration budget.
package perception

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/apperr"
	"github.com/user/browserstudio/internal/aria"
	"github.com/user/browserstudio/internal/audit"
	"github.com/user/browserstudio/internal/budget"
	"github.com/user/browserstudio/internal/executor"
	"github.com/user/browserstudio/internal/history"
	"github.com/user/browserstudio/internal/registry"
	"github.com/user/browserstudio/internal/safety"
	"github.com/user/browserstudio/internal/sampler"
	"github.com/user/browserstudio/internal/types"
	"github.com/user/browserstudio/internal/vision"
)

const truncationNotice = "\n... (truncated)"

const targetClosedA = "Target closed"
const targetClosedB = "Target page"

// Config is the perception loop's construction-time configuration.
type Config struct {
	Model                 string
	ViewportWidth         int
	ViewportHeight        int
	Quality               int
	MaxCycles             int
	MaxConsecutiveErrors  int
	SettleTimeMs          int64
	APITimeout            time.Duration
	AriaCharCap           int
	AuditDir              string
	SamplerThumbnailSize  int
	SamplerThreshold      float64
	MaxDetailedHistory    int
	Budget                types.BudgetLimits
	Safety                safety.Config
	lifecycleWaitOverride time.Duration // test hook; zero uses the 10s default
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		ViewportWidth:        1024,
		ViewportHeight:       768,
		Quality:              70,
		MaxCycles:            50,
		MaxConsecutiveErrors: 5,
		SettleTimeMs:         300,
		APITimeout:           30 * time.Second,
		AriaCharCap:          40000,
		AuditDir:             "./recordings",
		SamplerThumbnailSize: sampler.DefaultThumbnailSize,
		SamplerThreshold:     sampler.DefaultDiffThreshold,
		MaxDetailedHistory:   history.DefaultMaxDetailed,
		Budget:               types.DefaultBudgetLimits(),
	}
}

func (c Config) lifecycleWait() time.Duration {
	if c.lifecycleWaitOverride > 0 {
		return c.lifecycleWaitOverride
	}
	return 10 * time.Second
}

// Client is the external collaborator a Loop acquires and re-acquires
// pages from. *registry.Registry satisfies it directly.
type Client interface {
	Get(name string) (*registry.PageEntry, bool)
}

// Loop is a configured, reusable perception-loop driver. One Loop can run
// many tasks, each against Run producing its own audit trail and budget.
type Loop struct {
	cfg      Config
	client   Client
	vision   *vision.Client
	aria     *aria.Extractor
	logger   *zap.Logger
}

// New creates a Loop bound to client (normally a *registry.Registry) and a
// configured Vision Client.
func New(cfg Config, client Client, visionClient *vision.Client, logger *zap.Logger) *Loop {
	return &Loop{
		cfg:    cfg,
		client: client,
		vision: visionClient,
		aria:   aria.New(),
		logger: logger,
	}
}

// Run drives pageName toward task until it finishes, fails, exhausts its
// cycle budget, or is denied further progress by the Budget Controller.
func (l *Loop) Run(ctx context.Context, pageName, task string) (types.LoopResult, error) {
	page, ok := l.client.Get(pageName)
	if !ok {
		return types.LoopResult{}, apperr.NewNotFoundError(fmt.Sprintf("page %q not found", pageName))
	}

	auditLogger, err := audit.New(l.cfg.AuditDir, audit.TaskID(time.Now()))
	if err != nil {
		return types.LoopResult{}, fmt.Errorf("perception: create audit logger: %w", err)
	}
	defer auditLogger.Close()

	rs := &runState{
		loop:      l,
		audit:     auditLogger,
		budgetCtl: budget.New(l.cfg.Budget),
		sampler:   sampler.New(l.cfg.SamplerThumbnailSize, l.cfg.SamplerThreshold),
		policy:    safety.New(l.cfg.Safety),
		proxy:     &pageProxy{current: page},
		pageName:  pageName,
		task:      task,
	}
	rs.exec = executor.New(rs.proxy, rs.proxy.resolveRef)

	result := rs.run(ctx)
	_ = auditLogger.SaveSummary(result, rs.budgetCtl.Snapshot())
	return result, nil
}

// pageProxy indirects every Page/executor.Page call through a swappable
// current page entry, so a mid-run re-acquisition (step b's "Target
// closed" recovery) is invisible to the already-constructed Executor.
type pageProxy struct {
	current *registry.PageEntry
}

func (p *pageProxy) ClickAt(ctx context.Context, x, y float64, button string) error {
	return p.current.ClickAt(ctx, x, y, button)
}

func (p *pageProxy) HoverAt(ctx context.Context, x, y float64) error {
	return p.current.HoverAt(ctx, x, y)
}

func (p *pageProxy) Wheel(ctx context.Context, deltaX, deltaY float64) error {
	return p.current.Wheel(ctx, deltaX, deltaY)
}

func (p *pageProxy) Navigate(ctx context.Context, url string) error {
	return p.current.Navigate(ctx, url)
}

func (p *pageProxy) PressKey(ctx context.Context, key string) error {
	return p.current.PressKey(ctx, key)
}

func (p *pageProxy) Type(ctx context.Context, text string) error {
	return p.current.Type(ctx, text)
}

// resolveRef adapts PageEntry.ResolveRef's concrete, package-private
// *refElement return into the executor.Element interface the Executor was
// built against.
func (p *pageProxy) resolveRef(ref string) executor.Element {
	el := p.current.ResolveRef(ref)
	if el == nil {
		return nil
	}
	return el
}

// isTargetClosedErr matches the substrings step b of the perception loop
// treats as a recoverable "the tab went away" condition.
func isTargetClosedErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, targetClosedA) || strings.Contains(msg, targetClosedB)
}

// truncateSnapshot enforces the ARIA char cap, preferring to cut at the
// last newline before the limit so a line is never split mid-element.
func truncateSnapshot(s string, cap int) string {
	if cap <= 0 || len(s) <= cap {
		return s
	}
	cut := s[:cap]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + truncationNotice
}

// isStuck reports whether the last three cycle entries share an identical
// (kind, input) tuple.
func isStuck(entries []types.CycleEntry) bool {
	n := len(entries)
	if n < 3 {
		return false
	}
	last := entries[n-1]
	for i := n - 2; i >= n-3; i-- {
		if entries[i].Action.Kind != last.Action.Kind {
			return false
		}
		if !reflect.DeepEqual(entries[i].Action.Input, last.Action.Input) {
			return false
		}
	}
	return true
}

func frameBase64(frame []byte) string {
	return base64.StdEncoding.EncodeToString(frame)
}

func extractedData(action types.Action) map[string]interface{} {
	v, ok := action.Input["extracted_data"]
	if !ok {
		return nil
	}
	data, _ := v.(map[string]interface{})
	return data
}
