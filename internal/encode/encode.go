// Package encode compresses raw WAV captures into Opus-in-OGG for upload.
package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// ErrToolNotFound reports that the encoder binary is not installed.
var ErrToolNotFound = errors.New("ffmpeg not found in PATH")

// ffmpegAvailable caches whether ffmpeg is in PATH (checked once at startup).
var ffmpegAvailable *bool

// Check reports whether ffmpeg is available. Call once at startup.
func Check() bool {
	if ffmpegAvailable != nil {
		return *ffmpegAvailable
	}
	_, err := exec.LookPath("ffmpeg")
	avail := err == nil
	ffmpegAvailable = &avail
	return avail
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner executes commands via os/exec, returning captured stderr.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Encoder converts WAV captures to OGG/Opus.
type Encoder struct {
	runner commandRunner
	check  func() bool
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Encoder {
	return &Encoder{runner: execRunner{}, check: Check, log: log}
}

// NewWithRunner constructs an Encoder with an injected runner for tests. The
// PATH check is skipped.
func NewWithRunner(runner commandRunner, log zerolog.Logger) *Encoder {
	return &Encoder{runner: runner, check: func() bool { return true }, log: log}
}

// Encode compresses wavPath into a sibling .ogg file and removes the raw WAV
// on success. A missing encoder or a non-zero exit is fatal for the run; the
// raw file is kept in place for manual recovery.
func (e *Encoder) Encode(ctx context.Context, wavPath string) (string, error) {
	if !e.check() {
		return "", ErrToolNotFound
	}

	outPath := strings.TrimSuffix(wavPath, ".wav") + ".ogg"
	args := encodeArgs(wavPath, outPath)

	stderr, err := e.runner.Run(ctx, "ffmpeg", args...)
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg conversion failed (raw capture kept at %s): %w: %s", wavPath, err, strings.TrimSpace(stderr))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}

	if err := os.Remove(wavPath); err != nil {
		e.log.Warn().Err(err).Str("path", wavPath).Msg("could not remove raw capture")
	}
	e.log.Debug().Str("output", outPath).Msg("encode complete")
	return outPath, nil
}

// encodeArgs builds the compression invocation: mono Opus at 32kbps, plenty
// for speech-to-text upload.
func encodeArgs(inPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inPath,
		"-c:a", "libopus",
		"-b:a", "32k",
		outPath,
	}
}
