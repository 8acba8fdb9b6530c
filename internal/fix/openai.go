package fix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIFixer calls the OpenAI chat completions API with a strict JSON
// schema so the model can only answer in the expected shape.
// Implements the Provider interface.
type OpenAIFixer struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIFixer creates a new OpenAI correction client.
func NewOpenAIFixer(apiKey, model string) *OpenAIFixer {
	return &OpenAIFixer{
		baseURL: openAIBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
	}
}

// Name returns the provider name.
func (c *OpenAIFixer) Name() string { return "openai" }

// Model returns the configured model identifier.
func (c *OpenAIFixer) Model() string { return c.model }

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat any                 `json:"response_format,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// responseFormat constrains the completion to the one-field schema.
func responseFormat() any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "fixed_transcription",
			"strict": true,
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"fixed_transcription": map[string]any{"type": "string"},
				},
				"required":             []string{"fixed_transcription"},
				"additionalProperties": false,
			},
		},
	}
}

// Fix sends the correction request and strictly parses the schema-constrained
// response.
func (c *OpenAIFixer) Fix(ctx context.Context, req Request) (string, error) {
	payload := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: BuildUserMessage(req)},
		},
		Temperature:    0,
		ResponseFormat: responseFormat(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

	var chatResp openAIChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrBadResponse)
	}

	return decodeFixed(chatResp.Choices[0].Message.Content)
}
