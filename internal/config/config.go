package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultSystemPrompt instructs the correction model. It is deliberately
// narrow: fix transcription errors, never rewrite content.
const DefaultSystemPrompt = "You are a transcription repair assistant. " +
	"You receive the raw output of a speech-to-text system and return the same text " +
	"with transcription errors fixed: misheard words, wrong proper nouns, missing " +
	"punctuation, broken casing. Use the custom vocabulary, when provided, to spell " +
	"names and technical terms correctly. Do not rephrase, summarize, or add content. " +
	"If the text needs no correction, return it unchanged. " +
	"Respond with a JSON object containing exactly one key, \"fixed_transcription\", " +
	"whose value is the corrected text."

// DefaultVocabPrefix introduces the custom vocabulary block in the user message.
const DefaultVocabPrefix = "Custom vocabulary (terms the speaker is likely to use):"

// DefaultTranscriptPrefix introduces the raw transcript block in the user message.
const DefaultTranscriptPrefix = "Raw transcription to fix:"

type Config struct {
	Provider        string `env:"WHSPR_PROVIDER" envDefault:"openai"`
	TranscribeModel string `env:"WHSPR_TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	Language        string `env:"WHSPR_LANGUAGE" envDefault:"en"`

	FixProvider string `env:"WHSPR_FIX_PROVIDER" envDefault:"openai"`
	FixModel    string `env:"WHSPR_FIX_MODEL" envDefault:"gpt-4o-mini"`

	SystemPrompt     string `env:"WHSPR_SYSTEM_PROMPT"`
	VocabPrefix      string `env:"WHSPR_VOCAB_PREFIX"`
	TranscriptPrefix string `env:"WHSPR_TRANSCRIPT_PREFIX"`
	Suffix           string `env:"WHSPR_SUFFIX"`

	RecorderCommand string        `env:"WHSPR_RECORDER_COMMAND"`
	MaxDuration     time.Duration `env:"WHSPR_MAX_DURATION" envDefault:"15m"`

	OpenAIKey    string `env:"OPENAI_API_KEY"`
	GroqKey      string `env:"GROQ_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`

	DataDir        string `env:"WHSPR_DATA_DIR"`
	HistoryEnabled bool   `env:"WHSPR_HISTORY" envDefault:"true"`
	LogLevel       string `env:"WHSPR_LOG_LEVEL" envDefault:"warn"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	Language string
	Model    string
	LogLevel string
}

// transcribeModels is the closed set of accepted speech-to-text models per provider.
var transcribeModels = map[string][]string{
	"openai": {"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"},
	"groq":   {"whisper-large-v3", "whisper-large-v3-turbo"},
}

// SettingsFile returns the well-known settings file path
// (~/.config/whspr/whspr.env).
func SettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "whspr", "whspr.env")
}

// GlobalVocabFile returns the well-known global vocabulary path
// (~/.config/whspr/vocabulary.md).
func GlobalVocabFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "whspr", "vocabulary.md")
}

// LocalVocabFile is the project-local vocabulary filename, resolved
// against the working directory.
const LocalVocabFile = ".whspr-vocabulary.md"

// Load reads configuration from the settings file, environment variables, and
// CLI overrides. Priority: CLI flags > environment variables > settings file
// > struct defaults. A missing or malformed settings file is not an error;
// defaults apply.
func Load(overrides Overrides) (*Config, error) {
	settings := overrides.EnvFile
	if settings == "" {
		settings = SettingsFile()
	}
	if settings != "" {
		if _, err := os.Stat(settings); err == nil {
			_ = godotenv.Load(settings)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Prompt defaults are too long for envDefault tags; backstop here.
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.VocabPrefix == "" {
		cfg.VocabPrefix = DefaultVocabPrefix
	}
	if cfg.TranscriptPrefix == "" {
		cfg.TranscriptPrefix = DefaultTranscriptPrefix
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".local", "share", "whspr")
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.Model != "" {
		cfg.TranscribeModel = overrides.Model
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	models, ok := transcribeModels[c.Provider]
	if !ok {
		return fmt.Errorf("unknown transcription provider %q (supported: openai, groq)", c.Provider)
	}
	found := false
	for _, m := range models {
		if m == c.TranscribeModel {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("model %q is not supported by provider %q (supported: %v)", c.TranscribeModel, c.Provider, models)
	}
	switch c.FixProvider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown fix provider %q (supported: openai, anthropic)", c.FixProvider)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("WHSPR_MAX_DURATION must be positive, got %s", c.MaxDuration)
	}
	return nil
}

// CheckCredentials verifies that the API keys required by the selected
// providers are present. Called once at startup; a missing key is fatal.
func (c *Config) CheckCredentials() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set (required by transcription provider %q)", c.Provider)
		}
	case "groq":
		if c.GroqKey == "" {
			return fmt.Errorf("GROQ_API_KEY is not set (required by transcription provider %q)", c.Provider)
		}
	}
	switch c.FixProvider {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set (required by fix provider %q)", c.FixProvider)
		}
	case "anthropic":
		if c.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is not set (required by fix provider %q)", c.FixProvider)
		}
	}
	return nil
}
