package transcribe

import (
	"context"
	"fmt"

	"github.com/snarg/whspr/internal/config"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Opts) (string, error)
	Name() string  // "openai", "groq"
	Model() string // model identifier for logs/history
}

// Opts are per-request options common to all providers.
type Opts struct {
	Language string // ISO-639-1 code, e.g. "en"
}

// NewProvider selects the speech-to-text backend from config. The provider
// and model were validated at config load; selection happens once per run.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAIKey, cfg.TranscribeModel), nil
	case "groq":
		return NewGroqClient(cfg.GroqKey, cfg.TranscribeModel), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
