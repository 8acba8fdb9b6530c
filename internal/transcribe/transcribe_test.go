package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/snarg/whspr/internal/config"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.ogg")
	if err := os.WriteFile(path, []byte("fake-ogg-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenAITranscribe(t *testing.T) {
	audioPath := writeAudioFixture(t)

	t.Run("success", func(t *testing.T) {
		var gotModel, gotLanguage, gotAuth string
		var gotFile bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			gotModel = r.FormValue("model")
			gotLanguage = r.FormValue("language")
			gotAuth = r.Header.Get("Authorization")
			_, _, err := r.FormFile("file")
			gotFile = err == nil
			w.Write([]byte(`{"text":" hello world "}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient("sk-test", "whisper-1")
		c.baseURL = srv.URL

		text, err := c.Transcribe(context.Background(), audioPath, Opts{Language: "en"})
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if text != "hello world" {
			t.Errorf("text = %q, want trimmed %q", text, "hello world")
		}
		if gotModel != "whisper-1" {
			t.Errorf("model field = %q, want whisper-1", gotModel)
		}
		if gotLanguage != "en" {
			t.Errorf("language field = %q, want en", gotLanguage)
		}
		if gotAuth != "Bearer sk-test" {
			t.Errorf("auth header = %q", gotAuth)
		}
		if !gotFile {
			t.Error("no file part in request")
		}
	})

	t.Run("silence_returns_empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"text":""}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient("sk-test", "whisper-1")
		c.baseURL = srv.URL

		text, err := c.Transcribe(context.Background(), audioPath, Opts{})
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if text != "" {
			t.Errorf("text = %q, want empty", text)
		}
	})

	t.Run("api_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewOpenAIClient("sk-test", "whisper-1")
		c.baseURL = srv.URL

		if _, err := c.Transcribe(context.Background(), audioPath, Opts{}); err == nil {
			t.Fatal("Transcribe succeeded on 429")
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		c := NewOpenAIClient("sk-test", "whisper-1")
		if _, err := c.Transcribe(context.Background(), "/nonexistent/audio.ogg", Opts{}); err == nil {
			t.Fatal("Transcribe succeeded with missing audio file")
		}
	})
}

func TestGroqTranscribe(t *testing.T) {
	audioPath := writeAudioFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model field = %q, want whisper-large-v3", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk-test" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(`{"text":"post crest QL is great"}`))
	}))
	defer srv.Close()

	c := NewGroqClient("gsk-test", "whisper-large-v3")
	c.endpoint = srv.URL

	text, err := c.Transcribe(context.Background(), audioPath, Opts{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "post crest QL is great" {
		t.Errorf("text = %q", text)
	}
}

func TestNewProvider(t *testing.T) {
	cases := []struct {
		provider string
		model    string
		wantName string
	}{
		{"openai", "whisper-1", "openai"},
		{"groq", "whisper-large-v3", "groq"},
	}
	for _, tc := range cases {
		cfg := &config.Config{Provider: tc.provider, TranscribeModel: tc.model, OpenAIKey: "k", GroqKey: "k"}
		p, err := NewProvider(cfg)
		if err != nil {
			t.Fatalf("NewProvider(%s): %v", tc.provider, err)
		}
		if p.Name() != tc.wantName {
			t.Errorf("Name() = %q, want %q", p.Name(), tc.wantName)
		}
		if p.Model() != tc.model {
			t.Errorf("Model() = %q, want %q", p.Model(), tc.model)
		}
	}

	if _, err := NewProvider(&config.Config{Provider: "bogus"}); err == nil {
		t.Error("NewProvider accepted unknown provider")
	}
}
