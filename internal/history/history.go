// Package history collapses a perception loop's cycle log into a short
// prompt summary for the Vision Client.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/browserstudio/internal/types"
)

// DefaultMaxDetailed is the number of most-recent cycles rendered in full
// detail; older cycles collapse into one summary line.
const DefaultMaxDetailed = 10

const textTruncateLen = 20

// Compress renders entries into a single prompt-ready string. maxDetailed
// <= 0 uses DefaultMaxDetailed.
func Compress(entries []types.CycleEntry, maxDetailed int) string {
	if len(entries) == 0 {
		return ""
	}
	if maxDetailed <= 0 {
		maxDetailed = DefaultMaxDetailed
	}

	var lines []string

	if len(entries) > maxDetailed {
		older := entries[:len(entries)-maxDetailed]
		succeeded := 0
		for _, e := range older {
			if e.Result.Success {
				succeeded++
			}
		}
		lines = append(lines, fmt.Sprintf("[%d earlier actions: %d succeeded, %d failed]", len(older), succeeded, len(older)-succeeded))
		entries = entries[len(entries)-maxDetailed:]
	}

	for _, e := range entries {
		status := "OK"
		if !e.Result.Success {
			status = fmt.Sprintf("FAILED: %s", e.Result.Error)
		}
		lines = append(lines, fmt.Sprintf("%d. %s → %s", e.Cycle+1, formatAction(e.Action), status))
	}

	return strings.Join(lines, "\n")
}

// formatAction renders an action kind-specifically for the history prompt.
func formatAction(a types.Action) string {
	switch a.Kind {
	case types.ActionClick:
		if ref := a.StringArg("ref"); ref != "" {
			return fmt.Sprintf("click(ref=%s)", ref)
		}
		x, _ := a.FloatArg("x")
		y, _ := a.FloatArg("y")
		return fmt.Sprintf("click(x=%.0f, y=%.0f)", x, y)
	case types.ActionType:
		text := truncate(a.StringArg("text"), textTruncateLen)
		if ref := a.StringArg("ref"); ref != "" {
			return fmt.Sprintf("type(ref=%s, text=%q)", ref, text)
		}
		return fmt.Sprintf("type(text=%q)", text)
	case types.ActionScroll:
		return fmt.Sprintf("scroll(%s)", a.StringArg("direction"))
	case types.ActionNavigate:
		return fmt.Sprintf("navigate(%s)", a.StringArg("url"))
	case types.ActionKeyboard:
		return fmt.Sprintf("keyboard(%s)", a.StringArg("key"))
	case types.ActionWait:
		ms, _ := a.FloatArg("ms")
		return fmt.Sprintf("wait(%.0fms)", ms)
	case types.ActionHover:
		if ref := a.StringArg("ref"); ref != "" {
			return fmt.Sprintf("hover(ref=%s)", ref)
		}
		x, _ := a.FloatArg("x")
		y, _ := a.FloatArg("y")
		return fmt.Sprintf("hover(x=%.0f, y=%.0f)", x, y)
	case types.ActionSelect:
		return fmt.Sprintf("select(ref=%s, value=%s)", a.StringArg("ref"), a.StringArg("value"))
	case types.ActionDone:
		return "done"
	case types.ActionFail:
		return fmt.Sprintf("fail(%s)", a.StringArg("reason"))
	default:
		raw, err := json.Marshal(a)
		if err != nil {
			return string(a.Kind)
		}
		return string(raw)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
