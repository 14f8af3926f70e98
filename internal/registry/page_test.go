package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/types"
)

func newTestEntry(t *testing.T) *PageEntry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newPageEntry("p1", "target-1", ctx, cancel, zap.NewNop())
}

func TestPageEntry_ConsoleLogLifecycle(t *testing.T) {
	e := newTestEntry(t)
	e.pushConsoleLog(types.ConsoleLogEntry{Text: "one"})
	e.pushConsoleLog(types.ConsoleLogEntry{Text: "two"})

	require.Len(t, e.ConsoleLogs(), 2)
	require.Len(t, e.ConsoleLogsFrom(1), 1)
	require.Equal(t, "two", e.ConsoleLogsFrom(1)[0].Text)
	require.Nil(t, e.ConsoleLogsFrom(5))

	cleared := e.ClearConsoleLogs()
	require.Equal(t, 2, cleared)
	require.Empty(t, e.ConsoleLogs())
}

func TestPageEntry_RecordingLifecycle(t *testing.T) {
	e := newTestEntry(t)
	e.pushConsoleLog(types.ConsoleLogEntry{Text: "before"})

	ok := e.BeginRecording(types.RecordingOptions{Quality: 80})
	require.True(t, ok)

	ok = e.BeginRecording(types.RecordingOptions{})
	require.False(t, ok, "second BeginRecording while active must fail")

	e.AppendFrame([]byte{1, 2, 3})
	e.AppendFrame([]byte{4, 5, 6})

	isActive, _, frameCount, logCount := e.RecordingStatus()
	require.True(t, isActive)
	require.Equal(t, 2, frameCount)
	require.Equal(t, 1, logCount)

	state, ok := e.EndRecording()
	require.True(t, ok)
	require.Equal(t, 2, state.FrameCount)
	require.Equal(t, 1, state.RecordingStartIndex)

	_, ok = e.EndRecording()
	require.False(t, ok, "EndRecording while inactive must fail")
}

func TestPageEntry_AppendFrameNoopWhenNotRecording(t *testing.T) {
	e := newTestEntry(t)
	e.AppendFrame([]byte{1})
	_, _, frameCount, _ := e.RecordingStatus()
	require.Equal(t, 0, frameCount)
}

func TestPageEntry_ResolveRef(t *testing.T) {
	e := newTestEntry(t)
	require.Nil(t, e.ResolveRef("e1"))

	e.SetRefs(map[string]string{"e1": "#submit"})
	el := e.ResolveRef("e1")
	require.NotNil(t, el)
	require.Equal(t, "#submit", el.selector)

	require.Nil(t, e.ResolveRef("e2"))
}

func TestPageEntry_Meta(t *testing.T) {
	e := newTestEntry(t)
	meta := e.Meta()
	require.Equal(t, "p1", meta.Name)
	require.Equal(t, "target-1", meta.TargetID)
}

func TestDispatchKeyCombo_ParsesModifiersAndNamedKeys(t *testing.T) {
	// dispatchKeyCombo returns an ActionFunc; we can't run it without a
	// live CDP session, but construction itself must not panic for any
	// combo shape the executor can produce.
	for _, combo := range []string{"a", "Control+a", "Enter", "Shift+Tab", "Control+Alt+Delete"} {
		require.NotPanics(t, func() {
			_ = dispatchKeyCombo(combo)
		})
	}
}

func TestNewTestEntry_CreatedAtIsRecent(t *testing.T) {
	e := newTestEntry(t)
	require.WithinDuration(t, time.Now(), e.createdAt, time.Second)
}
