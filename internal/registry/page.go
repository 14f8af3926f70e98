package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/types"
)

// PageEntry is a named, long-lived page: a handle to the underlying browser
// page, its stable CDP target id, an append-only console log, and at most
// one active recording state. It implements both executor.Page (via page.go)
// and recording.Page.
type PageEntry struct {
	name      string
	targetID  target.ID
	ctx       context.Context
	cancel    context.CancelFunc
	createdAt time.Time
	logger    *zap.Logger

	mu          sync.Mutex
	consoleLogs []types.ConsoleLogEntry
	recState    types.RecordingState

	refsMu sync.RWMutex
	refs   map[string]string
}

func newPageEntry(name string, tid target.ID, ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *PageEntry {
	return &PageEntry{
		name:      name,
		targetID:  tid,
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		logger:    logger,
	}
}

// Name returns the page's registered name.
func (p *PageEntry) Name() string { return p.name }

// TargetID returns the page's stable CDP target identifier.
func (p *PageEntry) TargetID() target.ID { return p.targetID }

// Context returns the chromedp-managed context backing this page.
func (p *PageEntry) Context() context.Context { return p.ctx }

// Meta returns the serializable identity of this entry.
func (p *PageEntry) Meta() types.PageMeta {
	return types.PageMeta{Name: p.name, TargetID: string(p.targetID)}
}

func (p *PageEntry) pushConsoleLog(entry types.ConsoleLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consoleLogs = append(p.consoleLogs, entry)
}

// ConsoleLogs returns a copy of the full console log.
func (p *PageEntry) ConsoleLogs() []types.ConsoleLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ConsoleLogEntry, len(p.consoleLogs))
	copy(out, p.consoleLogs)
	return out
}

// ConsoleLogsFrom returns a copy of the console log from idx to the
// current end. Satisfies recording.Page.
func (p *PageEntry) ConsoleLogsFrom(idx int) []types.ConsoleLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.consoleLogs) {
		return nil
	}
	out := make([]types.ConsoleLogEntry, len(p.consoleLogs)-idx)
	copy(out, p.consoleLogs[idx:])
	return out
}

// ClearConsoleLogs empties the console log and returns the number of
// entries cleared.
func (p *PageEntry) ClearConsoleLogs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cleared := len(p.consoleLogs)
	p.consoleLogs = nil
	return cleared
}

// BeginRecording satisfies recording.Page.
func (p *PageEntry) BeginRecording(opts types.RecordingOptions) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recState.IsActive {
		return false
	}
	p.recState = types.RecordingState{
		IsActive:            true,
		StartedAt:           time.Now(),
		Options:             opts,
		RecordingStartIndex: len(p.consoleLogs),
	}
	return true
}

// AppendFrame satisfies recording.Page.
func (p *PageEntry) AppendFrame(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.recState.IsActive {
		return
	}
	p.recState.Frames = append(p.recState.Frames, data)
	p.recState.FrameCount++
}

// EndRecording satisfies recording.Page.
func (p *PageEntry) EndRecording() (types.RecordingState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.recState.IsActive {
		return types.RecordingState{}, false
	}
	snapshot := p.recState
	p.recState = types.RecordingState{}
	return snapshot, true
}

// RecordingStatus reports the current recording state for the status
// endpoint, without resetting anything.
func (p *PageEntry) RecordingStatus() (isActive bool, startedAt time.Time, frameCount int, consoleLogCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recState.IsActive, p.recState.StartedAt, p.recState.FrameCount, len(p.consoleLogs)
}

// FetchPageInfo retrieves best-effort URL/title. Satisfies recording.Page.
func (p *PageEntry) FetchPageInfo(ctx context.Context) types.PageInfo {
	var url, title string
	if err := chromedp.Run(ctx, chromedp.Location(&url), chromedp.Title(&title)); err != nil {
		p.logger.Debug("registry: fetch page info failed", zap.String("page", p.name), zap.Error(err))
	}
	return types.PageInfo{URL: url, Title: title}
}

// SetRefs installs the ref→CSS-selector mapping produced by the most
// recent accessibility snapshot, used by ResolveRef.
func (p *PageEntry) SetRefs(refs map[string]string) {
	p.refsMu.Lock()
	defer p.refsMu.Unlock()
	p.refs = refs
}

// ResolveRef resolves an accessibility-ref to an interactable element
// handle, or nil if unresolved. It returns the concrete *refElement;
// callers adapt it to executor.Element.
func (p *PageEntry) ResolveRef(ref string) *refElement {
	p.refsMu.RLock()
	selector, ok := p.refs[ref]
	p.refsMu.RUnlock()
	if !ok {
		return nil
	}
	return &refElement{selector: selector, ctx: p.ctx}
}

// OuterHTML retrieves the document's current outer HTML, for the
// accessibility extractor.
func (p *PageEntry) OuterHTML(ctx context.Context) (string, error) {
	var htmlContent string
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		root, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		htmlContent, err = dom.GetOuterHTML().WithNodeID(root.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", err
	}
	return htmlContent, nil
}

// Screenshot captures a JPEG screenshot of the current viewport at the
// given quality (0-100).
func (p *PageEntry) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, err := cdppage.CaptureScreenshot().
			WithFormat(cdppage.CaptureScreenshotFormatJpeg).
			WithQuality(int64(quality)).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// URL returns the page's current location, best-effort.
func (p *PageEntry) URL(ctx context.Context) string {
	var url string
	_ = chromedp.Run(ctx, chromedp.Location(&url))
	return url
}

// WaitDOMContentLoaded blocks until the page reaches domcontentloaded or
// ctx is done, whichever comes first. Best-effort: a timeout is not an
// error to the caller.
func (p *PageEntry) WaitDOMContentLoaded(ctx context.Context) {
	waitLifecycleEvent(ctx, "DOMContentLoaded")
}

// WaitNetworkIdle blocks until the page reaches networkIdle or ctx is
// done, whichever comes first. Best-effort.
func (p *PageEntry) WaitNetworkIdle(ctx context.Context) {
	waitLifecycleEvent(ctx, "networkIdle")
}

func waitLifecycleEvent(ctx context.Context, name string) {
	ch := make(chan struct{})
	listenerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chromedp.ListenTarget(listenerCtx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventLifecycleEvent); ok && string(e.Name) == name {
			select {
			case <-ch:
			default:
				close(ch)
			}
		}
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// ClickAt satisfies executor.Page.
func (p *PageEntry) ClickAt(ctx context.Context, x, y float64, button string) error {
	return chromedp.Run(ctx, chromedp.MouseClickXY(x, y, chromedp.Button(button)))
}

// HoverAt satisfies executor.Page.
func (p *PageEntry) HoverAt(ctx context.Context, x, y float64) error {
	return chromedp.Run(ctx, input.DispatchMouseEvent(input.MouseMoved, x, y))
}

// Wheel satisfies executor.Page.
func (p *PageEntry) Wheel(ctx context.Context, deltaX, deltaY float64) error {
	return chromedp.Run(ctx, input.DispatchMouseEvent(input.MouseWheel, 0, 0).WithDeltaX(deltaX).WithDeltaY(deltaY))
}

// Navigate satisfies executor.Page.
func (p *PageEntry) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

// PressKey satisfies executor.Page. Supports combos like "Control+a".
func (p *PageEntry) PressKey(ctx context.Context, key string) error {
	return chromedp.Run(ctx, dispatchKeyCombo(key))
}

// Type satisfies executor.Page: types into whatever currently has focus.
func (p *PageEntry) Type(ctx context.Context, text string) error {
	return chromedp.Run(ctx, chromedp.SendKeys(":focus", text, chromedp.ByQuery))
}

// refElement is a ref-resolved interactable element, identified by the CSS
// selector the accessibility extractor assigned it at snapshot time.
type refElement struct {
	selector string
	ctx      context.Context
}

func (e *refElement) Click(ctx context.Context, button string) error {
	return chromedp.Run(ctx, chromedp.Click(e.selector, chromedp.ByQuery, chromedp.Button(button)))
}

func (e *refElement) Hover(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ScrollIntoView(e.selector, chromedp.ByQuery), hoverAction(e.selector))
}

func (e *refElement) Fill(ctx context.Context, text string) error {
	return chromedp.Run(ctx, chromedp.SetValue(e.selector, text, chromedp.ByQuery))
}

func (e *refElement) Type(ctx context.Context, text string) error {
	return chromedp.Run(ctx, chromedp.SendKeys(e.selector, text, chromedp.ByQuery))
}

func (e *refElement) SelectByValue(ctx context.Context, value string) error {
	return chromedp.Run(ctx, chromedp.SetValue(e.selector, value, chromedp.ByQuery))
}

func (e *refElement) SelectByLabel(ctx context.Context, label string) error {
	return chromedp.Run(ctx, selectByLabelAction(e.selector, label))
}

func hoverAction(selector string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			return fmt.Errorf("no node matched selector %q", selector)
		}
		box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		if err != nil {
			return err
		}
		cx := (box.Content[0] + box.Content[4]) / 2
		cy := (box.Content[1] + box.Content[5]) / 2
		return input.DispatchMouseEvent(input.MouseMoved, cx, cy).Do(ctx)
	}
}

func selectByLabelAction(selector, label string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		script := `(function(sel, label) {
			var el = document.querySelector(sel);
			if (!el) return false;
			for (var i = 0; i < el.options.length; i++) {
				if (el.options[i].label === label || el.options[i].text === label) {
					el.value = el.options[i].value;
					el.dispatchEvent(new Event('change', {bubbles: true}));
					return true;
				}
			}
			return false;
		})(` + quoteJS(selector) + `, ` + quoteJS(label) + `)`
		var ok bool
		return chromedp.Evaluate(script, &ok).Do(ctx)
	}
}

func quoteJS(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
