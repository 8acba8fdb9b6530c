package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnvs sets env vars for the test and returns a cleanup func restoring
// prior values.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	prior := make(map[string]*string, len(envs))
	for k, v := range envs {
		if old, ok := os.LookupEnv(k); ok {
			prior[k] = &old
		} else {
			prior[k] = nil
		}
		os.Setenv(k, v)
	}
	return func() {
		for k, old := range prior {
			if old == nil {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, *old)
			}
		}
	}
}

// clearWhsprEnv unsets all whspr env vars so defaults are observable.
func clearWhsprEnv(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"WHSPR_PROVIDER", "WHSPR_TRANSCRIBE_MODEL", "WHSPR_LANGUAGE",
		"WHSPR_FIX_PROVIDER", "WHSPR_FIX_MODEL", "WHSPR_SYSTEM_PROMPT",
		"WHSPR_VOCAB_PREFIX", "WHSPR_TRANSCRIPT_PREFIX", "WHSPR_SUFFIX",
		"WHSPR_RECORDER_COMMAND", "WHSPR_MAX_DURATION", "WHSPR_DATA_DIR",
		"WHSPR_HISTORY", "WHSPR_LOG_LEVEL",
		"OPENAI_API_KEY", "GROQ_API_KEY", "ANTHROPIC_API_KEY",
	}
	prior := make(map[string]string)
	for _, k := range keys {
		if old, ok := os.LookupEnv(k); ok {
			prior[k] = old
			os.Unsetenv(k)
		}
	}
	return func() {
		for k, old := range prior {
			os.Setenv(k, old)
		}
	}
}

func TestLoad(t *testing.T) {
	defer clearWhsprEnv(t)()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Provider != "openai" {
			t.Errorf("Provider = %q, want openai", cfg.Provider)
		}
		if cfg.TranscribeModel != "whisper-1" {
			t.Errorf("TranscribeModel = %q, want whisper-1", cfg.TranscribeModel)
		}
		if cfg.Language != "en" {
			t.Errorf("Language = %q, want en", cfg.Language)
		}
		if cfg.FixProvider != "openai" {
			t.Errorf("FixProvider = %q, want openai", cfg.FixProvider)
		}
		if cfg.MaxDuration != 15*time.Minute {
			t.Errorf("MaxDuration = %s, want 15m", cfg.MaxDuration)
		}
		if cfg.SystemPrompt == "" {
			t.Error("SystemPrompt is empty after merge")
		}
		if cfg.VocabPrefix == "" {
			t.Error("VocabPrefix is empty after merge")
		}
		if cfg.TranscriptPrefix == "" {
			t.Error("TranscriptPrefix is empty after merge")
		}
		if cfg.DataDir == "" {
			t.Error("DataDir is empty after merge")
		}
		if !cfg.HistoryEnabled {
			t.Error("HistoryEnabled = false, want true")
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
		}
	})

	t.Run("settings_file", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "whspr.env")
		content := "WHSPR_LANGUAGE=de\nWHSPR_SUFFIX=\" -- dictated\"\n"
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			t.Fatalf("write settings: %v", err)
		}
		cfg, err := Load(Overrides{EnvFile: file})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Language != "de" {
			t.Errorf("Language = %q, want de", cfg.Language)
		}
		if cfg.Suffix != " -- dictated" {
			t.Errorf("Suffix = %q, want %q", cfg.Suffix, " -- dictated")
		}
		os.Unsetenv("WHSPR_LANGUAGE")
		os.Unsetenv("WHSPR_SUFFIX")
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		defer setEnvs(t, map[string]string{"WHSPR_LANGUAGE": "fr"})()
		cfg, err := Load(Overrides{
			EnvFile:  "nonexistent.env",
			Language: "es",
			Model:    "gpt-4o-transcribe",
			LogLevel: "debug",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Language != "es" {
			t.Errorf("Language = %q, want es", cfg.Language)
		}
		if cfg.TranscribeModel != "gpt-4o-transcribe" {
			t.Errorf("TranscribeModel = %q, want gpt-4o-transcribe", cfg.TranscribeModel)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
	})

	t.Run("unknown_provider_rejected", func(t *testing.T) {
		defer setEnvs(t, map[string]string{"WHSPR_PROVIDER": "parakeet"})()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Fatal("Load accepted unknown provider")
		}
	})

	t.Run("model_provider_mismatch_rejected", func(t *testing.T) {
		defer setEnvs(t, map[string]string{
			"WHSPR_PROVIDER":         "groq",
			"WHSPR_TRANSCRIBE_MODEL": "whisper-1",
			"GROQ_API_KEY":           "gsk-test",
		})()
		if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
			t.Fatal("Load accepted whisper-1 for groq")
		}
	})

	t.Run("malformed_settings_file_ignored", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "whspr.env")
		if err := os.WriteFile(file, []byte("%%% not an env file"), 0o644); err != nil {
			t.Fatalf("write settings: %v", err)
		}
		cfg, err := Load(Overrides{EnvFile: file})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Provider != "openai" {
			t.Errorf("Provider = %q, want openai default", cfg.Provider)
		}
	})
}

func TestCheckCredentials(t *testing.T) {
	defer clearWhsprEnv(t)()

	t.Run("missing_openai_key", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := cfg.CheckCredentials(); err == nil {
			t.Fatal("CheckCredentials passed with no OPENAI_API_KEY")
		}
	})

	t.Run("present_key", func(t *testing.T) {
		defer setEnvs(t, map[string]string{"OPENAI_API_KEY": "sk-test"})()
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := cfg.CheckCredentials(); err != nil {
			t.Fatalf("CheckCredentials: %v", err)
		}
	})

	t.Run("anthropic_fix_needs_anthropic_key", func(t *testing.T) {
		defer setEnvs(t, map[string]string{
			"OPENAI_API_KEY":     "sk-test",
			"WHSPR_FIX_PROVIDER": "anthropic",
		})()
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := cfg.CheckCredentials(); err == nil {
			t.Fatal("CheckCredentials passed with no ANTHROPIC_API_KEY")
		}
	})
}
