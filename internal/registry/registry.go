// Package registry owns named, long-lived browser pages: their CDP target
// identifiers, background console/recording sessions, and teardown. It is
// the "external page interface" collaborator the Action Executor and
// Recording Engine are built against.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/apperr"
	"github.com/user/browserstudio/internal/console"
	"github.com/user/browserstudio/internal/recording"
)

const maxNameBytes = 256

// Viewport is the optional size override accepted on page creation.
type Viewport struct {
	Width  int
	Height int
}

// Registry is a read-mostly, sync.RWMutex-guarded map of named page
// entries, matching the teacher ChromePool's concurrency shape.
type Registry struct {
	mu         sync.RWMutex
	pages      map[string]*PageEntry
	browserCtx context.Context
	logger     *zap.Logger
	console    *console.Capture
	recording  *recording.Engine
}

// New creates a Registry bound to a single browser's context. Every
// registered page is a new tab under that browser.
func New(browserCtx context.Context, logger *zap.Logger, consoleCapture *console.Capture, recordingEngine *recording.Engine) *Registry {
	return &Registry{
		pages:      make(map[string]*PageEntry),
		browserCtx: browserCtx,
		logger:     logger,
		console:    consoleCapture,
		recording:  recordingEngine,
	}
}

func validateName(name string) error {
	if name == "" {
		return apperr.InvalidName("name must be non-empty")
	}
	if len(name) > maxNameBytes {
		return apperr.InvalidName(fmt.Sprintf("name exceeds %d bytes", maxNameBytes))
	}
	return nil
}

// Create registers a new named page: a fresh tab under the shared browser
// context, with console capture attached and a watcher that tears the entry
// down when the page closes.
func (r *Registry) Create(name string, viewport *Viewport) (*PageEntry, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.pages[name]; exists {
		r.mu.Unlock()
		return nil, apperr.InvalidName(fmt.Sprintf("page %q is already registered", name))
	}
	r.mu.Unlock()

	ctx, cancel := chromedp.NewContext(r.browserCtx)

	if err := chromedp.Run(ctx,
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate("about:blank"),
	); err != nil {
		cancel()
		return nil, apperr.NewCDPError("create page target", err)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	if viewport != nil && viewport.Width > 0 && viewport.Height > 0 {
		if err := chromedp.Run(ctx, emulation.SetDeviceMetricsOverride(int64(viewport.Width), int64(viewport.Height), 1.0, false)); err != nil {
			r.logger.Warn("registry: set viewport failed", zap.String("page", name), zap.Error(err))
		}
	}

	tid := chromedp.FromContext(ctx).Target.TargetID

	entry := newPageEntry(name, tid, ctx, cancel, r.logger)

	if r.console != nil {
		if err := r.console.Attach(ctx, entry.pushConsoleLog); err != nil {
			r.logger.Warn("registry: attach console capture failed", zap.String("page", name), zap.Error(err))
		}
	}

	r.mu.Lock()
	r.pages[name] = entry
	r.mu.Unlock()

	go r.watchClose(entry)

	return entry, nil
}

func (r *Registry) watchClose(entry *PageEntry) {
	<-entry.Context().Done()
	r.teardown(entry.Name())
}

func (r *Registry) teardown(name string) {
	r.mu.Lock()
	entry, ok := r.pages[name]
	if ok {
		delete(r.pages, name)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if r.recording != nil {
		r.recording.Abort(entry)
	}
	entry.cancel()
}

// Get looks up a page entry by name.
func (r *Registry) Get(name string) (*PageEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.pages[name]
	return entry, ok
}

// Remove tears down and unregisters a page entry, detaching any active
// recording and console capture and cancelling its CDP context.
func (r *Registry) Remove(name string) error {
	r.mu.RLock()
	_, ok := r.pages[name]
	r.mu.RUnlock()
	if !ok {
		return apperr.NewNotFoundError(fmt.Sprintf("page %q not found", name))
	}
	r.teardown(name)
	return nil
}

// List returns registered page names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	return names
}

// Shutdown tears down every registered page, for process shutdown.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	names := make([]string, 0, len(r.pages))
	for name := range r.pages {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.teardown(name)
	}
}
