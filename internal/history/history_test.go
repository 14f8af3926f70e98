package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/browserstudio/internal/types"
)

func entry(cycle int, kind types.ActionKind, input map[string]interface{}, success bool, errMsg string) types.CycleEntry {
	return types.CycleEntry{
		Cycle:  cycle,
		Action: types.Action{Kind: kind, Input: input},
		Result: types.ActionResult{Success: success, Error: errMsg},
	}
}

func TestCompress_Empty(t *testing.T) {
	require.Equal(t, "", Compress(nil, 0))
}

func TestCompress_UnderMaxDetailedProducesExactlyNLines(t *testing.T) {
	entries := []types.CycleEntry{
		entry(0, types.ActionClick, map[string]interface{}{"ref": "e1"}, true, ""),
		entry(1, types.ActionScroll, map[string]interface{}{"direction": "down"}, false, "boom"),
	}
	out := Compress(entries, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "1. click(ref=e1) → OK")
	require.Contains(t, lines[1], "FAILED: boom")
}

func TestCompress_OverMaxDetailedPrependsSummary(t *testing.T) {
	entries := make([]types.CycleEntry, 0, 12)
	for i := 0; i < 12; i++ {
		success := i%3 != 0
		entries = append(entries, entry(i, types.ActionWait, map[string]interface{}{"ms": 100.0}, success, "err"))
	}
	out := Compress(entries, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 11)
	require.Contains(t, lines[0], "[2 earlier actions:")
}

func TestFormatAction_TypeTruncatesText(t *testing.T) {
	out := Compress([]types.CycleEntry{
		entry(0, types.ActionType, map[string]interface{}{"text": strings.Repeat("x", 50)}, true, ""),
	}, 10)
	require.Contains(t, out, strings.Repeat("x", 20))
	require.NotContains(t, out, strings.Repeat("x", 21))
}

func TestFormatAction_UnknownKindFallsBackToJSON(t *testing.T) {
	out := Compress([]types.CycleEntry{
		entry(0, types.ActionKind("teleport"), map[string]interface{}{"dest": "moon"}, true, ""),
	}, 10)
	require.Contains(t, out, "teleport")
}
