package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const groqEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"

// GroqClient calls Groq's OpenAI-style Whisper endpoint.
// Implements the Provider interface.
type GroqClient struct {
	endpoint string
	apiKey   string
	model    string // "whisper-large-v3" or "whisper-large-v3-turbo"
	client   *http.Client
}

// groqResponse is the JSON response from the Groq STT API.
type groqResponse struct {
	Text string `json:"text"`
}

// NewGroqClient creates a new Groq transcription client.
func NewGroqClient(apiKey, model string) *GroqClient {
	return &GroqClient{
		endpoint: groqEndpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{},
	}
}

// Name returns the provider name.
func (c *GroqClient) Name() string { return "groq" }

// Model returns the configured model identifier.
func (c *GroqClient) Model() string { return c.model }

// Transcribe sends an audio file to the Groq STT API and returns the raw text.
func (c *GroqClient) Transcribe(ctx context.Context, audioPath string, opts Opts) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}

	w.WriteField("model", c.model)
	if opts.Language != "" {
		w.WriteField("language", opts.Language)
	}
	w.WriteField("response_format", "json")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result groqResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}
