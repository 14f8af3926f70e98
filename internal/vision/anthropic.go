package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/user/browserstudio/internal/apperr"
	"github.com/user/browserstudio/internal/types"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	apiKeyEnvVar        = "ANTHROPIC_API_KEY"
)

// AnthropicClient is a thin HTTP implementation of ModelClient against the
// Messages API's tool-use contract. The wire plumbing is deliberately
// minimal; the request/response contract, not this client, is what the
// Vision Client is built against.
type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewAnthropicClient creates a client using ANTHROPIC_API_KEY from the
// environment. timeout bounds every request (the loop's configured API
// timeout).
func NewAnthropicClient(timeout time.Duration) (*AnthropicClient, error) {
	apiKey := os.Getenv(apiKeyEnvVar)
	if apiKey == "" {
		return nil, apperr.NewValidationError(apperr.CodeInvalidOptions, fmt.Sprintf("%s is not set", apiKeyEnvVar))
	}
	return &AnthropicClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []Message           `json:"messages"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicResponse struct {
	Content []ContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateMessage implements ModelClient.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	tools := make([]anthropicTool, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  req.Messages,
		Tools:     tools,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return ModelResponse{}, fmt.Errorf("vision: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		return ModelResponse{}, fmt.Errorf("vision: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ModelResponse{}, apperr.NewModelError("model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{}, apperr.NewModelError("reading model response failed", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return ModelResponse{}, apperr.NewModelError("parsing model response failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("model API returned %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return ModelResponse{}, apperr.NewModelError(msg, nil)
	}

	return ModelResponse{
		Content: parsed.Content,
		Usage:   types.TokenUsage{Input: parsed.Usage.InputTokens, Output: parsed.Usage.OutputTokens},
	}, nil
}
