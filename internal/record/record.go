// Package record drives an external recorder process (ffmpeg by default)
// against the platform default audio input and produces a bounded-duration
// WAV capture.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// ErrCancelled reports that the user aborted the recording. The orchestrator
// treats it as a silent exit, not a failure.
var ErrCancelled = errors.New("recording cancelled")

// OutputPlaceholder marks where the capture path goes in a custom recorder
// command.
const OutputPlaceholder = "{output}"

// Recording is a handle to a captured audio artifact.
type Recording struct {
	Path      string
	Duration  float64 // seconds
	StartedAt time.Time
}

// Options configures a Recorder.
type Options struct {
	// Command optionally overrides the recorder invocation. Parsed with
	// shell-style word splitting; the {output} token is replaced with the
	// capture path (appended when absent). Empty means the built-in ffmpeg
	// backend.
	Command     string
	MaxDuration time.Duration
	TmpDir      string    // defaults to os.TempDir()
	Keys        io.Reader // keypress source, defaults to os.Stdin
	Status      io.Writer // status line sink, defaults to os.Stderr
	Log         zerolog.Logger
}

// Recorder captures microphone audio to a temp WAV file.
type Recorder struct {
	opts Options
}

func New(opts Options) *Recorder {
	if opts.TmpDir == "" {
		opts.TmpDir = os.TempDir()
	}
	if opts.Keys == nil {
		opts.Keys = os.Stdin
	}
	if opts.Status == nil {
		opts.Status = os.Stderr
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 15 * time.Minute
	}
	return &Recorder{opts: opts}
}

type keyAction int

const (
	keyStop keyAction = iota
	keyCancel
)

// Record starts the recorder process and runs until the user stops it
// (Enter), cancels it (q/c + Enter, returning ErrCancelled), or the duration
// ceiling is reached. The realized duration is read from the WAV header,
// falling back to wall clock.
func (r *Recorder) Record(ctx context.Context) (*Recording, error) {
	outPath := filepath.Join(r.opts.TmpDir, "whspr-"+uuid.NewString()+".wav")

	argv, err := buildCommand(r.opts.Command, outPath, r.opts.MaxDuration)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("recorder %q not found in PATH: %w", argv[0], err)
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}
	r.opts.Log.Debug().Strs("argv", argv).Str("output", outPath).Msg("recorder started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	keyCh := make(chan keyAction, 1)
	go watchKeys(r.opts.Keys, keyCh)

	statusDone := make(chan struct{})
	go r.statusLoop(outPath, started, statusDone)

	var cancelled bool
	var interrupted bool
	select {
	case err = <-waitCh:
		// Recorder exited on its own: duration ceiling, or a startup
		// failure (bad device, missing backend).
	case action := <-keyCh:
		cancelled = action == keyCancel
		interrupted = true
		err = stopProcess(cmd, waitCh, cancelled)
	case <-ctx.Done():
		cancelled = true
		interrupted = true
		err = stopProcess(cmd, waitCh, true)
	}
	close(statusDone)
	fmt.Fprint(r.opts.Status, "\r\033[K")

	if cancelled {
		os.Remove(outPath)
		return nil, ErrCancelled
	}

	// ffmpeg exits non-zero when interrupted; a usable capture file is the
	// real success signal.
	if _, statErr := os.Stat(outPath); statErr != nil {
		if err != nil {
			return nil, fmt.Errorf("recorder failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("recorder produced no output file: %s", outPath)
	}
	if err != nil && !interrupted {
		os.Remove(outPath)
		return nil, fmt.Errorf("recorder failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	duration := probeDuration(outPath)
	if duration <= 0 {
		duration = time.Since(started).Seconds()
	}

	r.opts.Log.Debug().Float64("duration_s", duration).Msg("capture complete")
	return &Recording{Path: outPath, Duration: duration, StartedAt: started}, nil
}

// stopProcess interrupts the recorder (SIGINT lets ffmpeg finalize the WAV
// header) and waits for it to exit, escalating to SIGKILL after 5s.
func stopProcess(cmd *exec.Cmd, waitCh chan error, kill bool) error {
	if kill {
		_ = cmd.Process.Kill()
	} else {
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			_ = cmd.Process.Kill()
		}
	}
	select {
	case err := <-waitCh:
		return err
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		return <-waitCh
	}
}

// watchKeys reads lines from the key source: an empty line stops the
// recording, a line starting with q or c cancels it.
func watchKeys(in io.Reader, ch chan<- keyAction) {
	buf := make([]byte, 64)
	var line strings.Builder
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			if b != '\n' {
				line.WriteByte(b)
				continue
			}
			s := strings.TrimSpace(strings.ToLower(line.String()))
			line.Reset()
			switch {
			case s == "":
				ch <- keyStop
				return
			case strings.HasPrefix(s, "q") || strings.HasPrefix(s, "c"):
				ch <- keyCancel
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// statusLoop prints a best-effort capture status line once per second:
// elapsed time and bytes written so far.
func (r *Recorder) statusLoop(path string, started time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			elapsed := time.Since(started).Round(time.Second)
			var size int64
			if fi, err := os.Stat(path); err == nil {
				size = fi.Size()
			}
			fmt.Fprintf(r.opts.Status, "\r\033[K● recording %02d:%02d  %dkB  [enter=stop, q=cancel] ",
				int(elapsed.Minutes()), int(elapsed.Seconds())%60, size/1024)
		}
	}
}

// buildCommand resolves the recorder argv: a shellwords-parsed custom command
// with the {output} placeholder substituted, or the built-in ffmpeg backend
// for the current platform.
func buildCommand(custom, outPath string, maxDuration time.Duration) ([]string, error) {
	if custom == "" {
		return ffmpegArgs(outPath, maxDuration), nil
	}
	argv, err := shellwords.Parse(custom)
	if err != nil {
		return nil, fmt.Errorf("parse recorder command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("recorder command is empty")
	}
	replaced := false
	for i, a := range argv {
		if strings.Contains(a, OutputPlaceholder) {
			argv[i] = strings.ReplaceAll(a, OutputPlaceholder, outPath)
			replaced = true
		}
	}
	if !replaced {
		argv = append(argv, outPath)
	}
	return argv, nil
}

// ffmpegArgs builds the default capture invocation: default input device,
// 16kHz mono s16 WAV, hard duration ceiling via -t.
func ffmpegArgs(outPath string, maxDuration time.Duration) []string {
	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error", "-y"}
	switch runtime.GOOS {
	case "darwin":
		args = append(args, "-f", "avfoundation", "-i", ":default")
	case "windows":
		args = append(args, "-f", "dshow", "-i", "audio=default")
	default:
		args = append(args, "-f", "pulse", "-i", "default")
	}
	args = append(args,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-t", strconv.Itoa(int(maxDuration.Seconds())),
		outPath,
	)
	return args
}

// probeDuration reads the WAV header and returns the audio duration in
// seconds, or 0 when the file cannot be parsed.
func probeDuration(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	dur, err := d.Duration()
	if err != nil {
		return 0
	}
	return dur.Seconds()
}
