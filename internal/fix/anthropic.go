package fix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicFixer calls the Anthropic Messages API. The schema is enforced by
// the system prompt and the strict response parse; a non-conforming answer
// is rejected, not salvaged.
// Implements the Provider interface.
type AnthropicFixer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAnthropicFixer creates a new Anthropic correction client.
func NewAnthropicFixer(apiKey, model string) *AnthropicFixer {
	return &AnthropicFixer{
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

// Name returns the provider name.
func (c *AnthropicFixer) Name() string { return "anthropic" }

// Model returns the configured model identifier.
func (c *AnthropicFixer) Model() string { return c.model }

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Fix sends the correction request and strictly parses the response.
func (c *AnthropicFixer) Fix(ctx context.Context, req Request) (string, error) {
	payload := anthropicRequest{
		Model:  c.model,
		System: req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildUserMessage(req)},
		},
		// Anthropic requires max_tokens; transcripts are bounded by the
		// 15-minute capture ceiling.
		MaxTokens: 8192,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("correction request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("correction API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(msgResp.Content) == 0 || msgResp.Content[0].Type != "text" {
		return "", fmt.Errorf("%w: no text content in response", ErrBadResponse)
	}

	return decodeFixed(msgResp.Content[0].Text)
}
