package console

import (
	"encoding/json"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/require"

	"github.com/user/browserstudio/internal/types"
)

func TestNormalizeConsoleAPI_LevelMapping(t *testing.T) {
	cases := map[runtime.APIType]string{
		runtime.APITypeWarning: types.LevelWarn,
		runtime.APITypeError:   types.LevelError,
		runtime.APITypeInfo:    types.LevelInfo,
		runtime.APITypeDebug:   types.LevelDebug,
		runtime.APITypeTrace:   types.LevelTrace,
		runtime.APITypeLog:     types.LevelLog,
	}

	for apiType, wantLevel := range cases {
		e := &runtime.EventConsoleAPICalled{Type: apiType}
		entry := normalizeConsoleAPI(e)
		require.Equal(t, wantLevel, entry.Level, "type %s", apiType)
	}
}

func TestNormalizeConsoleAPI_JoinsArgsWithSpace(t *testing.T) {
	e := &runtime.EventConsoleAPICalled{
		Type: runtime.APITypeLog,
		Args: []*runtime.RemoteObject{
			{Value: json.RawMessage(`"hello"`)},
			{Value: json.RawMessage(`42`)},
		},
	}
	entry := normalizeConsoleAPI(e)
	require.Equal(t, `"hello" 42`, entry.Text)
}

func TestStringifyArg_FallsBackToDescriptionThenPreviewThenType(t *testing.T) {
	require.Equal(t, "my description", stringifyArg(&runtime.RemoteObject{Description: "my description"}))
	require.Equal(t, "preview desc", stringifyArg(&runtime.RemoteObject{
		Preview: &runtime.ObjectPreview{Description: "preview desc"},
	}))
	require.Equal(t, "object", stringifyArg(&runtime.RemoteObject{Type: runtime.TypeObject}))
}

func TestNormalizeException_PrefersExceptionDescription(t *testing.T) {
	e := &runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{
			Text:       "Uncaught",
			LineNumber: 10,
			ColumnNumber: 5,
			URL:        "https://example.com/app.js",
			Exception: &runtime.RemoteObject{
				Description: "TypeError: x is not a function",
			},
		},
	}
	entry := normalizeException(e)
	require.Equal(t, types.LevelError, entry.Level)
	require.Equal(t, "TypeError: x is not a function", entry.Text)
	require.Equal(t, "https://example.com/app.js", entry.URL)
	require.Equal(t, 10, entry.Line)
	require.Equal(t, 5, entry.Column)
}

func TestNormalizeException_FallsBackToText(t *testing.T) {
	e := &runtime.EventExceptionThrown{
		ExceptionDetails: &runtime.ExceptionDetails{Text: "Script error"},
	}
	entry := normalizeException(e)
	require.Equal(t, "Script error", entry.Text)
}
