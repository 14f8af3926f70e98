// Package vision serializes a (screenshot, accessibility tree, history,
// task) tuple to a vision-capable language model and parses its response
// into a single structured agent action.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/browserstudio/internal/budget"
	"github.com/user/browserstudio/internal/types"
)

// systemPrompt describes the closed action vocabulary and the ARIA-ref
// convention. It is fixed; only the user message varies cycle to cycle.
const systemPrompt = `You are an autonomous browser agent. You observe a screenshot and an
accessibility snapshot of the current page, then choose exactly one action
to make progress on the task.

Interactable elements in the accessibility snapshot are annotated with
[ref=eN] markers. Prefer acting on a ref over raw coordinates whenever one
is available.

Available actions: click, type, scroll, navigate, keyboard, wait, hover,
select, done, fail. Call done when the task is complete, with a summary and
any extracted data. Call fail when the task cannot be completed, with a
reason. You must always respond with exactly one tool call.`

// ContentBlock is one block of a model message: text, image, or tool_use,
// mirroring the Anthropic Messages API's content block union.
type ContentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "image"
	Source *ImageSource `json:"source,omitempty"`

	// type == "tool_use"
	ToolUseID string                 `json:"id,omitempty"`
	ToolName  string                 `json:"name,omitempty"`
	ToolInput map[string]interface{} `json:"input,omitempty"`
}

// ImageSource is a base64-encoded inline image.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolSchema declares one callable tool in the model's tool-use contract.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ModelRequest is the wire-agnostic request the Vision Client hands to a
// ModelClient implementation.
type ModelRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSchema
	MaxTokens int
}

// ModelResponse is the wire-agnostic response a ModelClient returns.
type ModelResponse struct {
	Content []ContentBlock
	Usage   types.TokenUsage
}

// ModelClient is the model API collaborator; its HTTP wire contract is out
// of scope, only this request/response shape matters.
type ModelClient interface {
	CreateMessage(ctx context.Context, req ModelRequest) (ModelResponse, error)
}

// AnalyzeInput is the (screenshot, accessibility tree, history, task)
// tuple composed once per cycle.
type AnalyzeInput struct {
	FrameBase64  string
	AriaSnapshot string
	History      string
	Task         string
}

// AnalyzeResult carries the parsed action, any reasoning text preceding
// the tool-use block, and token usage for the call.
type AnalyzeResult struct {
	Action    types.Action
	Reasoning string
	Usage     types.TokenUsage
}

const defaultMaxTokens = 2048

// Client drives a ModelClient with the fixed system prompt and the ten
// agent action tool schemas.
type Client struct {
	model  string
	client ModelClient
}

// New creates a Client for the given model, calling through client.
func New(model string, client ModelClient) *Client {
	return &Client{model: model, client: client}
}

// AnalyzeFrame builds the user message, invokes the model, and parses the
// first tool-use block into an Action.
func (c *Client) AnalyzeFrame(ctx context.Context, in AnalyzeInput) (AnalyzeResult, error) {
	userText := composeUserText(in)

	req := ModelRequest{
		Model:  c.model,
		System: systemPrompt,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentBlock{
					{Type: "image", Source: &ImageSource{Type: "base64", MediaType: "image/jpeg", Data: in.FrameBase64}},
					{Type: "text", Text: userText},
				},
			},
		},
		Tools:     actionToolSchemas,
		MaxTokens: defaultMaxTokens,
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("vision: model call failed: %w", err)
	}

	return parseResponse(resp, userText), nil
}

func composeUserText(in AnalyzeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\n%s\n", in.Task)
	if in.History != "" {
		fmt.Fprintf(&b, "\n## Previous Actions\n%s\n", in.History)
	}
	fmt.Fprintf(&b, "\n## Current Page ARIA Snapshot\n```\n%s\n```\n", in.AriaSnapshot)
	b.WriteString("\nChoose exactly one action to progress the task.")
	return b.String()
}

// parseResponse extracts the first tool-use block and any preceding text.
// If no tool-use block is present, it synthesizes a fail action so the
// loop always has something terminal to act on.
func parseResponse(resp ModelResponse, promptText string) AnalyzeResult {
	var reasoning strings.Builder
	for _, block := range resp.Content {
		if block.Type == "tool_use" {
			return AnalyzeResult{
				Action:    types.Action{Kind: types.ActionKind(block.ToolName), Input: block.ToolInput},
				Reasoning: strings.TrimSpace(reasoning.String()),
				Usage:     withEstimatedUsage(resp.Usage, promptText, resp.Content),
			}
		}
		if block.Type == "text" {
			reasoning.WriteString(block.Text)
		}
	}

	reason := strings.TrimSpace(reasoning.String())
	if reason == "" {
		reason = "model returned no tool-use block"
	}

	return AnalyzeResult{
		Action:    types.Action{Kind: types.ActionFail, Input: map[string]interface{}{"reason": reason}},
		Reasoning: reason,
		Usage:     withEstimatedUsage(resp.Usage, promptText, resp.Content),
	}
}

// withEstimatedUsage fills in a token estimate when the model response
// carried no usage block, using the tiktoken-go fallback estimator.
func withEstimatedUsage(usage types.TokenUsage, promptText string, content []ContentBlock) types.TokenUsage {
	if usage.Input != 0 || usage.Output != 0 {
		return usage
	}

	outputText := ""
	for _, block := range content {
		if block.Type == "text" {
			outputText += block.Text
		}
		if block.Type == "tool_use" {
			if raw, err := json.Marshal(block.ToolInput); err == nil {
				outputText += string(raw)
			}
		}
	}

	return types.TokenUsage{
		Input:  budget.EstimateTextTokens(promptText),
		Output: budget.EstimateTextTokens(outputText),
	}
}
