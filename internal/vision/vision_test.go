package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/browserstudio/internal/types"
)

type fakeModelClient struct {
	resp ModelResponse
	err  error
	lastReq ModelRequest
}

func (f *fakeModelClient) CreateMessage(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func TestAnalyzeFrame_ParsesToolUse(t *testing.T) {
	fake := &fakeModelClient{
		resp: ModelResponse{
			Content: []ContentBlock{
				{Type: "text", Text: "I will click the button"},
				{Type: "tool_use", ToolName: "click", ToolInput: map[string]interface{}{"ref": "e5"}},
			},
			Usage: types.TokenUsage{Input: 100, Output: 20},
		},
	}
	c := New("claude-test", fake)

	result, err := c.AnalyzeFrame(context.Background(), AnalyzeInput{
		FrameBase64:  "abc123",
		AriaSnapshot: "- button [ref=e5]",
		Task:         "click the button",
	})
	require.NoError(t, err)
	require.Equal(t, types.ActionClick, result.Action.Kind)
	require.Equal(t, "e5", result.Action.Input["ref"])
	require.Equal(t, "I will click the button", result.Reasoning)
	require.Equal(t, 100, result.Usage.Input)
	require.Equal(t, 20, result.Usage.Output)

	require.Contains(t, fake.lastReq.Messages[0].Content[1].Text, "## Task\nclick the button\n")
	require.Contains(t, fake.lastReq.Messages[0].Content[1].Text, "## Current Page ARIA Snapshot")
}

func TestAnalyzeFrame_HistoryIncludedWhenPresent(t *testing.T) {
	fake := &fakeModelClient{
		resp: ModelResponse{Content: []ContentBlock{{Type: "tool_use", ToolName: "wait", ToolInput: map[string]interface{}{}}}},
	}
	c := New("claude-test", fake)

	_, err := c.AnalyzeFrame(context.Background(), AnalyzeInput{
		Task:    "do it",
		History: "1. click(ref=e1) → OK",
	})
	require.NoError(t, err)
	require.Contains(t, fake.lastReq.Messages[0].Content[1].Text, "## Previous Actions\n1. click(ref=e1) → OK")
}

func TestAnalyzeFrame_NoToolUseSynthesizesFail(t *testing.T) {
	fake := &fakeModelClient{
		resp: ModelResponse{Content: []ContentBlock{{Type: "text", Text: "I am stuck and cannot proceed"}}},
	}
	c := New("claude-test", fake)

	result, err := c.AnalyzeFrame(context.Background(), AnalyzeInput{Task: "x"})
	require.NoError(t, err)
	require.Equal(t, types.ActionFail, result.Action.Kind)
	require.Equal(t, "I am stuck and cannot proceed", result.Action.Input["reason"])
}

func TestAnalyzeFrame_EstimatesUsageWhenMissing(t *testing.T) {
	fake := &fakeModelClient{
		resp: ModelResponse{Content: []ContentBlock{{Type: "tool_use", ToolName: "done", ToolInput: map[string]interface{}{"success": true, "summary": "ok"}}}},
	}
	c := New("claude-test", fake)

	result, err := c.AnalyzeFrame(context.Background(), AnalyzeInput{Task: "finish up"})
	require.NoError(t, err)
	require.Greater(t, result.Usage.Input, 0)
	require.Greater(t, result.Usage.Output, 0)
}

func TestAnalyzeFrame_ModelError(t *testing.T) {
	fake := &fakeModelClient{err: context.DeadlineExceeded}
	c := New("claude-test", fake)

	_, err := c.AnalyzeFrame(context.Background(), AnalyzeInput{Task: "x"})
	require.Error(t, err)
}
