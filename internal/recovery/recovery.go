// Package recovery preserves compressed audio artifacts when the pipeline
// fails downstream of conversion, so a transcription failure never loses the
// recording.
package recovery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Dir returns the recovery directory under the data dir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "recovery")
}

// Preserve moves src into the recovery directory under a timestamped,
// collision-resistant filename and returns the new path. Falls back to
// copy+remove when rename crosses filesystems.
func Preserve(dataDir, src string) (string, error) {
	dir := Dir(dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create recovery dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s",
		time.Now().Format("20060102-150405"),
		uuid.NewString()[:8],
		filepath.Ext(src),
	)
	dst := filepath.Join(dir, name)

	if err := os.Rename(src, dst); err != nil {
		if copyErr := copyFile(src, dst); copyErr != nil {
			return "", fmt.Errorf("preserve %s: %w", src, copyErr)
		}
		os.Remove(src)
	}
	return dst, nil
}

// copyFile writes dst atomically: temp file in the target dir, then rename.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".recover-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
