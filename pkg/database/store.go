package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soypete/mockinterview/pkg/transcribe"
)

// DefaultListLimit caps history queries that pass no limit.
const DefaultListLimit = 50

// Store implements transcribe.Recorder on top of DB.
type Store struct {
	db *DB
}

var _ transcribe.Recorder = (*Store)(nil)

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun saves one transcription run
func (s *Store) RecordRun(ctx context.Context, run *transcribe.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := s.db.rebind(`
		INSERT INTO transcription_runs (id, language, mime_type, kind, code, exit_code, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Language,
		run.MimeType,
		string(run.Kind),
		run.Code,
		run.ExitCode,
		run.Duration.Milliseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]transcribe.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := s.db.rebind(`
		SELECT id, language, mime_type, kind, code, exit_code, duration_ms, created_at
		FROM transcription_runs
		ORDER BY created_at DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []transcribe.Run{}
	for rows.Next() {
		var run transcribe.Run
		var kind string
		var durationMS int64
		if err := rows.Scan(
			&run.ID,
			&run.Language,
			&run.MimeType,
			&kind,
			&run.Code,
			&run.ExitCode,
			&durationMS,
			&run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Kind = transcribe.Kind(kind)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Ping verifies the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
