// Package fix repairs raw transcriptions with a language model, biased by
// user-supplied custom vocabulary.
package fix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/snarg/whspr/internal/config"
)

// ErrBadResponse reports a correction response that does not conform to the
// expected {"fixed_transcription": string} shape. It is retried with the
// same budget as a network failure, never best-effort-parsed.
var ErrBadResponse = errors.New("correction response violates schema")

// Provider is the interface for correction backends.
type Provider interface {
	Fix(ctx context.Context, req Request) (string, error)
	Name() string  // "openai", "anthropic"
	Model() string // model identifier for logs/history
}

// Request carries the raw transcript and prompt material for one correction
// call.
type Request struct {
	Transcript       string
	Vocabulary       string // empty means no custom vocabulary
	SystemPrompt     string
	VocabPrefix      string
	TranscriptPrefix string
}

// NewProvider selects the correction backend from config, once per run.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.FixProvider {
	case "openai":
		return NewOpenAIFixer(cfg.OpenAIKey, cfg.FixModel), nil
	case "anthropic":
		return NewAnthropicFixer(cfg.AnthropicKey, cfg.FixModel), nil
	default:
		return nil, fmt.Errorf("unknown fix provider %q", cfg.FixProvider)
	}
}

// BuildUserMessage assembles the user message: the vocabulary block (prefix
// line plus fenced content) when present, then the transcript block. The
// vocabulary section is omitted entirely, not included empty, when no
// vocabulary exists.
func BuildUserMessage(req Request) string {
	var b strings.Builder
	if req.Vocabulary != "" {
		b.WriteString(req.VocabPrefix)
		b.WriteString("\n```\n")
		b.WriteString(req.Vocabulary)
		b.WriteString("\n```\n\n")
	}
	b.WriteString(req.TranscriptPrefix)
	b.WriteString("\n```\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n```")
	return b.String()
}

// decodeFixed parses a correction response under a strict contract: it must
// be a JSON object with exactly the fixed_transcription string field.
func decodeFixed(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()

	var payload struct {
		Fixed *string `json:"fixed_transcription"`
	}
	if err := dec.Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if payload.Fixed == nil {
		return "", fmt.Errorf("%w: missing fixed_transcription field", ErrBadResponse)
	}
	if dec.More() {
		return "", fmt.Errorf("%w: trailing data after JSON object", ErrBadResponse)
	}
	return *payload.Fixed, nil
}
