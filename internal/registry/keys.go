package registry

import (
	"context"
	"strings"
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// namedKeys maps combo segment names (case-insensitive) to their DOM key
// name. Single characters pass through unchanged.
var namedKeys = map[string]string{
	"enter":     "Enter",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"space":     " ",
	"backspace": "Backspace",
	"delete":    "Delete",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
}

var modifierBits = map[string]input.Modifier{
	"control": input.ModifierCtrl,
	"ctrl":    input.ModifierCtrl,
	"alt":     input.ModifierAlt,
	"option":  input.ModifierAlt,
	"shift":   input.ModifierShift,
	"meta":    input.ModifierMeta,
	"command": input.ModifierMeta,
	"cmd":     input.ModifierMeta,
}

// dispatchKeyCombo builds a chromedp action that dispatches a raw
// Input.dispatchKeyEvent keydown/keyup pair for a combo string like
// "Control+a" or a single key like "Enter".
func dispatchKeyCombo(combo string) chromedp.ActionFunc {
	parts := strings.Split(combo, "+")
	main := parts[len(parts)-1]

	var mods input.Modifier
	for _, part := range parts[:len(parts)-1] {
		if bit, ok := modifierBits[strings.ToLower(part)]; ok {
			mods |= bit
		}
	}

	key := main
	if named, ok := namedKeys[strings.ToLower(main)]; ok {
		key = named
	}

	text := ""
	if len([]rune(key)) == 1 && unicode.IsPrint([]rune(key)[0]) {
		text = key
	}

	return func(ctx context.Context) error {
		down := input.DispatchKeyEvent(input.KeyDown).WithModifiers(mods).WithKey(key)
		up := input.DispatchKeyEvent(input.KeyUp).WithModifiers(mods).WithKey(key)
		if text != "" {
			down = down.WithText(text)
		}
		if err := down.Do(ctx); err != nil {
			return err
		}
		return up.Do(ctx)
	}
}
