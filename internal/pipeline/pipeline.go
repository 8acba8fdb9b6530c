// Package pipeline sequences the dictation run: capture, convert,
// transcribe, post-process, deliver. Failure downstream of conversion
// preserves the compressed audio in the recovery directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"github.com/snarg/whspr/internal/config"
	"github.com/snarg/whspr/internal/fix"
	"github.com/snarg/whspr/internal/history"
	"github.com/snarg/whspr/internal/record"
	"github.com/snarg/whspr/internal/recovery"
	"github.com/snarg/whspr/internal/retry"
	"github.com/snarg/whspr/internal/transcribe"
	"github.com/snarg/whspr/internal/vocab"
)

// Network calls get this budget per attempt; the retry wrapper supplies the
// attempt boundary itself.
const requestTimeout = 60 * time.Second

const networkAttempts = 3

// Error is a stage-aware pipeline failure. RecoveryPath is set when the
// compressed audio was preserved.
type Error struct {
	Stage        string
	RecoveryPath string
	Err          error
}

func (e *Error) Error() string {
	if e.RecoveryPath != "" {
		return fmt.Sprintf("%s: %v (audio preserved at %s)", e.Stage, e.Err, e.RecoveryPath)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of a completed run.
type Result struct {
	Text    string
	Words   int
	Chars   int
	Elapsed time.Duration // processing time, capture end to delivery
}

// Recorder captures microphone audio.
type Recorder interface {
	Record(ctx context.Context) (*record.Recording, error)
}

// Encoder compresses a raw capture for upload.
type Encoder interface {
	Encode(ctx context.Context, wavPath string) (string, error)
}

// Options wires the pipeline. Unset function fields get production defaults.
type Options struct {
	Config   *config.Config
	Recorder Recorder
	Encoder  Encoder
	STT      transcribe.Provider
	Fixer    fix.Provider
	History  *history.Store // nil disables history
	Out      io.Writer      // final text sink, defaults to os.Stdout
	Status   io.Writer      // stats and progress, defaults to os.Stderr
	Verbose  bool
	Log      zerolog.Logger

	LoadVocab func() string
	Preserve  func(src string) (string, error)
	CopyText  func(text string) error
	Notify    func(title, body string) error
}

// Pipeline is the linear dictation orchestrator.
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	cfg := opts.Config
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	if opts.LoadVocab == nil {
		opts.LoadVocab = func() string {
			return vocab.Assemble(config.GlobalVocabFile(), config.LocalVocabFile)
		}
	}
	if opts.Preserve == nil {
		opts.Preserve = func(src string) (string, error) {
			return recovery.Preserve(cfg.DataDir, src)
		}
	}
	if opts.CopyText == nil {
		opts.CopyText = clipboard.WriteAll
	}
	if opts.Notify == nil {
		opts.Notify = func(title, body string) error {
			return beeep.Notify(title, body, "")
		}
	}
	return &Pipeline{opts: opts}
}

// Run executes one dictation end to end. A user cancellation surfaces as
// record.ErrCancelled; every other failure is a *Error carrying the stage
// and, downstream of conversion, the recovery path.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.opts.Config
	log := p.opts.Log

	rec, err := p.opts.Recorder.Record(ctx)
	if err != nil {
		if errors.Is(err, record.ErrCancelled) {
			log.Debug().Msg("recording cancelled by user")
			return nil, err
		}
		return nil, &Error{Stage: "recording", Err: err}
	}
	log.Debug().Str("path", rec.Path).Float64("duration_s", rec.Duration).Msg("capture done")

	procStart := time.Now()

	oggPath, err := p.opts.Encoder.Encode(ctx, rec.Path)
	if err != nil {
		// No compressed artifact exists yet; the raw WAV stays where the
		// encoder left it.
		return nil, &Error{Stage: "converting", Err: err}
	}

	rawText, err := retry.Do(ctx, "transcription", networkAttempts, log, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return p.opts.STT.Transcribe(ctx, oggPath, transcribe.Opts{Language: cfg.Language})
	})
	if err != nil {
		return nil, p.fail("transcribing", oggPath, err)
	}
	if p.opts.Verbose {
		fmt.Fprintf(p.opts.Status, "raw transcription: %s\n", rawText)
	}

	// File reads only; a missing vocabulary document is absence, not an error.
	vocabCtx := p.opts.LoadVocab()
	if vocabCtx != "" {
		log.Debug().Int("bytes", len(vocabCtx)).Msg("custom vocabulary loaded")
	}

	fixed, err := retry.Do(ctx, "post-processing", networkAttempts, log, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return p.opts.Fixer.Fix(ctx, fix.Request{
			Transcript:       rawText,
			Vocabulary:       vocabCtx,
			SystemPrompt:     cfg.SystemPrompt,
			VocabPrefix:      cfg.VocabPrefix,
			TranscriptPrefix: cfg.TranscriptPrefix,
		})
	})
	if err != nil {
		return nil, p.fail("post-processing", oggPath, err)
	}

	if cfg.Suffix != "" {
		fixed += cfg.Suffix
	}

	result := &Result{
		Text:    fixed,
		Words:   len(strings.Fields(fixed)),
		Chars:   utf8.RuneCountInString(fixed),
		Elapsed: time.Since(procStart),
	}

	fmt.Fprintln(p.opts.Out, result.Text)
	fmt.Fprintf(p.opts.Status, "%d words, %d chars in %s\n", result.Words, result.Chars, result.Elapsed.Round(time.Millisecond))

	// Clipboard failure is not fatal: the text was already displayed.
	if err := p.opts.CopyText(result.Text); err != nil {
		log.Warn().Err(err).Msg("clipboard delivery failed; text printed above")
	}

	if err := os.Remove(oggPath); err != nil {
		log.Warn().Err(err).Str("path", oggPath).Msg("could not remove compressed audio")
	}

	p.recordHistory(ctx, rec, result)

	if err := p.opts.Notify("whspr", fmt.Sprintf("copied %d words to clipboard", result.Words)); err != nil {
		log.Debug().Err(err).Msg("notification failed")
	}

	return result, nil
}

// fail preserves the compressed audio and wraps err with the stage.
func (p *Pipeline) fail(stage, oggPath string, err error) *Error {
	preserved, perr := p.opts.Preserve(oggPath)
	if perr != nil {
		p.opts.Log.Warn().Err(perr).Str("path", oggPath).Msg("could not preserve audio")
		return &Error{Stage: stage, Err: err}
	}
	return &Error{Stage: stage, RecoveryPath: preserved, Err: err}
}

func (p *Pipeline) recordHistory(ctx context.Context, rec *record.Recording, result *Result) {
	if p.opts.History == nil || !p.opts.Config.HistoryEnabled {
		return
	}
	err := p.opts.History.Append(ctx, history.Entry{
		StartedAt:       rec.StartedAt,
		AudioSeconds:    rec.Duration,
		ProcessingMs:    result.Elapsed.Milliseconds(),
		WordCount:       result.Words,
		CharCount:       result.Chars,
		TranscribeModel: p.opts.STT.Model(),
		FixModel:        p.opts.Fixer.Model(),
		Text:            result.Text,
	})
	if err != nil {
		p.opts.Log.Warn().Err(err).Msg("could not record history entry")
	}
}
