package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/whspr/internal/config"
	"github.com/snarg/whspr/internal/encode"
	"github.com/snarg/whspr/internal/fix"
	"github.com/snarg/whspr/internal/history"
	"github.com/snarg/whspr/internal/pipeline"
	"github.com/snarg/whspr/internal/record"
	"github.com/snarg/whspr/internal/transcribe"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verbose     = flag.Bool("v", false, "verbose output (raw transcription, debug logging)")
		envFile     = flag.String("env-file", "", "settings file to load instead of ~/.config/whspr/whspr.env")
		language    = flag.String("language", "", "spoken language hint (ISO 639-1), overrides WHSPR_LANGUAGE")
		model       = flag.String("model", "", "transcription model, overrides WHSPR_TRANSCRIBE_MODEL")
		noClipboard = flag.Bool("no-clipboard", false, "print the result only, skip the clipboard")
		historyN    = flag.Int("history", 0, "print the N most recent dictations and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("whspr", version)
		return 0
	}

	overrides := config.Overrides{
		EnvFile:  *envFile,
		Language: *language,
		Model:    *model,
	}
	if *verbose {
		overrides.LogLevel = "debug"
	}

	early := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(overrides)
	if err != nil {
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *historyN != 0 {
		return printHistory(ctx, cfg, *historyN, log)
	}

	if err := cfg.CheckCredentials(); err != nil {
		log.Fatal().Err(err).Msg("missing credential")
	}
	if !encode.Check() {
		log.Fatal().Msg("ffmpeg not found in PATH; install it to record and convert audio")
	}

	stt, err := transcribe.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build transcription provider")
	}
	fixer, err := fix.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build fix provider")
	}
	log.Debug().
		Str("stt", stt.Name()).Str("stt_model", stt.Model()).
		Str("fix", fixer.Name()).Str("fix_model", fixer.Model()).
		Msg("providers ready")

	var store *history.Store
	if cfg.HistoryEnabled {
		store, err = history.Open(ctx, historyPath(cfg), log.With().Str("component", "history").Logger())
		if err != nil {
			// Dictation still works without the log.
			log.Warn().Err(err).Msg("history disabled: could not open database")
			store = nil
		} else {
			defer store.Close()
		}
	}

	opts := pipeline.Options{
		Config: cfg,
		Recorder: record.New(record.Options{
			Command:     cfg.RecorderCommand,
			MaxDuration: cfg.MaxDuration,
			Log:         log.With().Str("component", "record").Logger(),
		}),
		Encoder: encode.New(log.With().Str("component", "encode").Logger()),
		STT:     stt,
		Fixer:   fixer,
		History: store,
		Verbose: *verbose,
		Log:     log.With().Str("component", "pipeline").Logger(),
	}
	if *noClipboard {
		opts.CopyText = func(string) error { return nil }
		opts.Notify = func(string, string) error { return nil }
	}

	result, err := pipeline.New(opts).Run(ctx)
	if err != nil {
		if exitCode(err) == 0 {
			// User cancellation exits silently.
			return 0
		}
		log.Error().Err(err).Msg("dictation failed")
		return 1
	}
	log.Debug().Int("words", result.Words).Dur("elapsed", result.Elapsed).Msg("done")
	return 0
}

// exitCode maps a dictation outcome to the process exit code: success and
// user cancellation exit 0, everything else exits 1.
func exitCode(err error) int {
	if err == nil || errors.Is(err, record.ErrCancelled) {
		return 0
	}
	return 1
}

func historyPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "history.db")
}

func printHistory(ctx context.Context, cfg *config.Config, n int, log zerolog.Logger) int {
	store, err := history.Open(ctx, historyPath(cfg), log)
	if err != nil {
		log.Error().Err(err).Msg("could not open history database")
		return 1
	}
	defer store.Close()

	entries, err := store.Recent(ctx, n)
	if err != nil {
		log.Error().Err(err).Msg("could not read history")
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no dictations recorded yet")
		return 0
	}
	for _, e := range entries {
		fmt.Printf("%s  %5.1fs audio  %4d words  %s/%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.AudioSeconds, e.WordCount, e.TranscribeModel, e.FixModel)
		fmt.Printf("  %s\n", e.Text)
	}
	return 0
}
