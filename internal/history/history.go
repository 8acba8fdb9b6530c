// Package history keeps a local SQLite log of completed dictations.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Entry is one completed dictation.
type Entry struct {
	ID              int64
	StartedAt       time.Time
	AudioSeconds    float64
	ProcessingMs    int64
	WordCount       int
	CharCount       int
	TranscribeModel string
	FixModel        string
	Text            string
}

// Store wraps the SQLite-backed dictation log.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the history database at path.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS dictations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    audio_seconds REAL NOT NULL,
    processing_ms INTEGER NOT NULL,
    word_count INTEGER NOT NULL,
    char_count INTEGER NOT NULL,
    transcribe_model TEXT NOT NULL,
    fix_model TEXT NOT NULL,
    text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dictations_started ON dictations(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Append records one completed dictation.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO dictations (started_at, audio_seconds, processing_ms, word_count, char_count, transcribe_model, fix_model, text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StartedAt.UTC(), e.AudioSeconds, e.ProcessingMs, e.WordCount, e.CharCount, e.TranscribeModel, e.FixModel, e.Text,
	)
	if err != nil {
		return fmt.Errorf("insert dictation: %w", err)
	}
	return nil
}

// Recent returns the n most recent dictations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, audio_seconds, processing_ms, word_count, char_count, transcribe_model, fix_model, text
FROM dictations ORDER BY started_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query dictations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.AudioSeconds, &e.ProcessingMs,
			&e.WordCount, &e.CharCount, &e.TranscribeModel, &e.FixModel, &e.Text); err != nil {
			return nil, fmt.Errorf("scan dictation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
