// Package storage provides SQLite window and journal storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/firemaker/model"
)

// SqliteStorage implements WindowStore, Journal and JournalReader using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each pooled connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS window (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			width INTEGER NOT NULL CHECK (width > 0),
			height INTEGER NOT NULL CHECK (height > 0),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			target INTEGER NOT NULL,
			fires_made INTEGER NOT NULL DEFAULT 0,
			outcome TEXT,
			detail TEXT
		);

		CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			reason TEXT NOT NULL,
			fires_made INTEGER NOT NULL,
			consecutive_failures INTEGER NOT NULL,
			at INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE,
			UNIQUE(run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_transitions_run
		ON transitions(run_id, seq);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// WindowStore implementation

// LoadWindow returns the stored rectangle, or ok=false when none is stored.
func (s *SqliteStorage) LoadWindow(ctx context.Context) (model.WindowRect, bool, error) {
	var rect model.WindowRect
	err := s.db.QueryRowContext(ctx,
		"SELECT x, y, width, height FROM window WHERE id = 1").
		Scan(&rect.X, &rect.Y, &rect.Width, &rect.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WindowRect{}, false, nil
	}
	if err != nil {
		return model.WindowRect{}, false, fmt.Errorf("failed to load window: %w", err)
	}
	return rect, true, nil
}

// SaveWindow overwrites the stored rectangle.
func (s *SqliteStorage) SaveWindow(ctx context.Context, rect model.WindowRect) error {
	if !rect.Valid() {
		return fmt.Errorf("refusing to store invalid window rectangle %s", rect)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO window (id, x, y, width, height, updated_at)
		VALUES (1, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			width = excluded.width,
			height = excluded.height,
			updated_at = excluded.updated_at`,
		rect.X, rect.Y, rect.Width, rect.Height)
	if err != nil {
		return fmt.Errorf("failed to save window: %w", err)
	}
	return nil
}

// Journal implementation

// StartRun inserts a new run row.
func (s *SqliteStorage) StartRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at, target) VALUES (?, ?, ?)",
		run.ID, run.StartedAt.UnixMilli(), run.Target)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// RecordTransition appends a transition to its run.
func (s *SqliteStorage) RecordTransition(ctx context.Context, t TransitionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(run_id, seq, from_state, to_state, reason, fires_made, consecutive_failures, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Seq, t.From, t.To, t.Reason, t.FiresMade, t.ConsecutiveFailures, t.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (s *SqliteStorage) FinishRun(ctx context.Context, run RunRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, fires_made = ?, outcome = ?, detail = ?
		WHERE run_id = ?`,
		run.FinishedAt.UnixMilli(), run.FiresMade, run.Outcome, run.Detail, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %q", run.ID)
	}
	return nil
}

// JournalReader implementation

// RecentRuns returns the latest runs, newest first.
func (s *SqliteStorage) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, target, fires_made, outcome, detail
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			r          RunRecord
			startedAt  int64
			finishedAt sql.NullInt64
			outcome    sql.NullString
			detail     sql.NullString
		)
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Target, &r.FiresMade, &outcome, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		if finishedAt.Valid {
			r.FinishedAt = time.UnixMilli(finishedAt.Int64)
		}
		r.Outcome = outcome.String
		r.Detail = detail.String
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Transitions returns a run's transitions in order.
func (s *SqliteStorage) Transitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, from_state, to_state, reason, fires_made, consecutive_failures, at
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	out := []TransitionRecord{}
	for rows.Next() {
		t := TransitionRecord{RunID: runID}
		var at int64
		if err := rows.Scan(&t.Seq, &t.From, &t.To, &t.Reason, &t.FiresMade, &t.ConsecutiveFailures, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = time.UnixMilli(at)
		out = append(out, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return out, nil
}

var (
	_ WindowStore   = (*SqliteStorage)(nil)
	_ Journal       = (*SqliteStorage)(nil)
	_ JournalReader = (*SqliteStorage)(nil)
)
