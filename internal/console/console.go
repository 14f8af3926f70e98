// Package console establishes a dedicated, process-lifetime CDP sink for a
// page's console API calls and runtime exceptions.
package console

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/browserstudio/internal/types"
)

var levelByType = map[string]string{
	"warning": types.LevelWarn,
	"error":   types.LevelError,
	"info":    types.LevelInfo,
	"debug":   types.LevelDebug,
	"trace":   types.LevelTrace,
}

// Sink receives console log entries as they are normalized off the wire,
// appended in CDP event order to the owning page's log vector.
type Sink func(types.ConsoleLogEntry)

// Capture enables the Runtime domain on a page's session and forwards
// console API calls and exceptions to a sink.
type Capture struct {
	logger *zap.Logger
}

// New creates a Capture.
func New(logger *zap.Logger) *Capture {
	return &Capture{logger: logger}
}

// Attach enables the Runtime domain on ctx (expected to be a
// chromedp-managed page context) and subscribes sink to console events. It
// outlives the individual request that created it; the caller is
// responsible for tearing it down by cancelling ctx.
func (c *Capture) Attach(ctx context.Context, sink Sink) error {
	if err := chromedp.Run(ctx, runtime.Enable()); err != nil {
		return fmt.Errorf("console: enable runtime domain: %w", err)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			sink(normalizeConsoleAPI(e))
		case *runtime.EventExceptionThrown:
			sink(normalizeException(e))
		}
	})

	return nil
}

func normalizeConsoleAPI(e *runtime.EventConsoleAPICalled) types.ConsoleLogEntry {
	level, ok := levelByType[e.Type.String()]
	if !ok {
		level = types.LevelLog
	}

	text := ""
	for i, arg := range e.Args {
		if i > 0 {
			text += " "
		}
		text += stringifyArg(arg)
	}

	entry := types.ConsoleLogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Text:      text,
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		entry.URL = frame.URL
		entry.Line = int(frame.LineNumber)
		entry.Column = int(frame.ColumnNumber)
	}
	return entry
}

// stringifyArg renders one console argument, preferring a literal value,
// then its description, then a preview description, then its type name.
func stringifyArg(arg *runtime.RemoteObject) string {
	if arg == nil {
		return ""
	}
	if len(arg.Value) > 0 {
		return string(arg.Value)
	}
	if arg.Description != "" {
		return arg.Description
	}
	if arg.Preview != nil && arg.Preview.Description != "" {
		return arg.Preview.Description
	}
	return string(arg.Type)
}

func normalizeException(e *runtime.EventExceptionThrown) types.ConsoleLogEntry {
	details := e.ExceptionDetails

	text := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		text = details.Exception.Description
	}

	entry := types.ConsoleLogEntry{
		Timestamp: time.Now(),
		Level:     types.LevelError,
		Text:      text,
		Line:      int(details.LineNumber),
		Column:    int(details.ColumnNumber),
	}
	if details.URL != "" {
		entry.URL = details.URL
	}
	return entry
}
