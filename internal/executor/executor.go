// Package executor translates a structured agent action into concrete
// operations against a page, returning a uniform success/error result for
// every action kind.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/user/browserstudio/internal/types"
)

// Element is an interactable element handle resolved from an accessibility
// ref, the "external page-interface collaborator" named in the spec.
type Element interface {
	Click(ctx context.Context, button string) error
	Hover(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Type(ctx context.Context, text string) error
	SelectByValue(ctx context.Context, value string) error
	SelectByLabel(ctx context.Context, label string) error
}

// Page is the minimal page surface the Executor drives directly, for
// actions that do not go through a resolved ref.
type Page interface {
	ClickAt(ctx context.Context, x, y float64, button string) error
	HoverAt(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, deltaX, deltaY float64) error
	Navigate(ctx context.Context, url string) error
	PressKey(ctx context.Context, key string) error
	Type(ctx context.Context, text string) error
}

// RefResolver resolves an accessibility-ref string (e.g. "e5") to an
// interactable element handle, returning nil if the ref cannot be
// resolved.
type RefResolver func(ref string) Element

const (
	defaultScrollAmount  = 300.0
	defaultWaitMs        = 1000
	navigateTimeout      = 15 * time.Second
	defaultClickButton   = "left"
)

// Executor dispatches agent actions against a page.
type Executor struct {
	page       Page
	resolveRef RefResolver
}

// New creates an Executor bound to page, resolving refs via resolveRef.
func New(page Page, resolveRef RefResolver) *Executor {
	return &Executor{page: page, resolveRef: resolveRef}
}

// Execute dispatches action and returns its result. It never panics out:
// any unexpected failure, including a panic from a collaborator, is
// captured and surfaced as a failed result.
func (e *Executor) Execute(ctx context.Context, action types.Action) (result types.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.ActionResult{Success: false, Error: fmt.Sprintf("%v", r)}
		}
	}()

	switch action.Kind {
	case types.ActionClick:
		return e.execClick(ctx, action)
	case types.ActionType:
		return e.execType(ctx, action)
	case types.ActionScroll:
		return e.execScroll(ctx, action)
	case types.ActionNavigate:
		return e.execNavigate(ctx, action)
	case types.ActionKeyboard:
		return e.execKeyboard(ctx, action)
	case types.ActionWait:
		return e.execWait(ctx, action)
	case types.ActionHover:
		return e.execHover(ctx, action)
	case types.ActionSelect:
		return e.execSelect(ctx, action)
	case types.ActionDone, types.ActionFail:
		return types.ActionResult{Success: true}
	default:
		return types.ActionResult{Success: false, Error: fmt.Sprintf("Unknown action: %s", action.Kind)}
	}
}

func errResult(err error) types.ActionResult {
	return types.ActionResult{Success: false, Error: err.Error()}
}

func (e *Executor) execClick(ctx context.Context, action types.Action) types.ActionResult {
	button := action.StringArg("button")
	if button == "" {
		button = defaultClickButton
	}

	if ref := action.StringArg("ref"); ref != "" {
		el := e.resolveRef(ref)
		if el == nil {
			return types.ActionResult{Success: false, Error: fmt.Sprintf("could not resolve ref %q", ref)}
		}
		if err := el.Click(ctx, button); err != nil {
			return errResult(err)
		}
		return types.ActionResult{Success: true}
	}

	x, okX := action.FloatArg("x")
	y, okY := action.FloatArg("y")
	if okX && okY {
		if err := e.page.ClickAt(ctx, x, y, button); err != nil {
			return errResult(err)
		}
		return types.ActionResult{Success: true}
	}

	return types.ActionResult{Success: false, Error: "click requires ref or x,y"}
}

func (e *Executor) execType(ctx context.Context, action types.Action) types.ActionResult {
	text := action.StringArg("text")
	if text == "" {
		return types.ActionResult{Success: false, Error: "type requires text"}
	}
	clearFirst := action.BoolArg("clear_first", false)

	if ref := action.StringArg("ref"); ref != "" {
		el := e.resolveRef(ref)
		if el == nil {
			return types.ActionResult{Success: false, Error: fmt.Sprintf("could not resolve ref %q", ref)}
		}
		if clearFirst {
			if err := el.Fill(ctx, text); err != nil {
				return errResult(err)
			}
			return types.ActionResult{Success: true}
		}
		if err := el.Click(ctx, defaultClickButton); err != nil {
			return errResult(err)
		}
		if err := el.Type(ctx, text); err != nil {
			return errResult(err)
		}
		return types.ActionResult{Success: true}
	}

	if clearFirst {
		if err := e.page.PressKey(ctx, "Control+a"); err != nil {
			return errResult(err)
		}
	}
	if err := e.page.Type(ctx, text); err != nil {
		return errResult(err)
	}
	return types.ActionResult{Success: true}
}

var scrollDeltas = map[string][2]float64{
	"up":    {0, -1},
	"down":  {0, 1},
	"left":  {-1, 0},
	"right": {1, 0},
}

func (e *Executor) execScroll(ctx context.Context, action types.Action) types.ActionResult {
	direction := action.StringArg("direction")
	dir, ok := scrollDeltas[direction]
	if !ok {
		return types.ActionResult{Success: false, Error: fmt.Sprintf("scroll requires direction in {up,down,left,right}, got %q", direction)}
	}

	amount := defaultScrollAmount
	if v, ok := action.FloatArg("amount"); ok {
		amount = v
	}

	if err := e.page.Wheel(ctx, dir[0]*amount, dir[1]*amount); err != nil {
		return errResult(err)
	}
	return types.ActionResult{Success: true}
}

func (e *Executor) execNavigate(ctx context.Context, action types.Action) types.ActionResult {
	url := action.StringArg("url")
	if url == "" {
		return types.ActionResult{Success: false, Error: "navigate requires url"}
	}

	ctx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	if err := e.page.Navigate(ctx, url); err != nil {
		return errResult(err)
	}
	return types.ActionResult{Success: true}
}

func (e *Executor) execKeyboard(ctx context.Context, action types.Action) types.ActionResult {
	key := action.StringArg("key")
	if key == "" {
		return types.ActionResult{Success: false, Error: "keyboard requires key"}
	}
	if err := e.page.PressKey(ctx, key); err != nil {
		return errResult(err)
	}
	return types.ActionResult{Success: true}
}

func (e *Executor) execWait(ctx context.Context, action types.Action) types.ActionResult {
	ms := float64(defaultWaitMs)
	if v, ok := action.FloatArg("ms"); ok {
		ms = v
	}

	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return errResult(ctx.Err())
	}
	return types.ActionResult{Success: true}
}

func (e *Executor) execHover(ctx context.Context, action types.Action) types.ActionResult {
	if ref := action.StringArg("ref"); ref != "" {
		el := e.resolveRef(ref)
		if el == nil {
			return types.ActionResult{Success: false, Error: fmt.Sprintf("could not resolve ref %q", ref)}
		}
		if err := el.Hover(ctx); err != nil {
			return errResult(err)
		}
		return types.ActionResult{Success: true}
	}

	x, okX := action.FloatArg("x")
	y, okY := action.FloatArg("y")
	if okX && okY {
		if err := e.page.HoverAt(ctx, x, y); err != nil {
			return errResult(err)
		}
		return types.ActionResult{Success: true}
	}

	return types.ActionResult{Success: false, Error: "hover requires ref or x,y"}
}

func (e *Executor) execSelect(ctx context.Context, action types.Action) types.ActionResult {
	ref := action.StringArg("ref")
	value := action.StringArg("value")
	if ref == "" || value == "" {
		return types.ActionResult{Success: false, Error: "select requires ref and value"}
	}

	el := e.resolveRef(ref)
	if el == nil {
		return types.ActionResult{Success: false, Error: fmt.Sprintf("could not resolve ref %q", ref)}
	}

	if err := el.SelectByValue(ctx, value); err != nil {
		if fallbackErr := el.SelectByLabel(ctx, value); fallbackErr != nil {
			return errResult(fallbackErr)
		}
	}
	return types.ActionResult{Success: true}
}
