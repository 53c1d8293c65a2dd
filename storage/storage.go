// Package storage provides persistence for the tracked window and the run journal.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping between JSON file, SQLite and memory without API changes
// - Each implementation encapsulates its own encoding and locking

package storage

import (
	"context"
	"time"

	"github.com/richinex/firemaker/model"
)

// WindowStore persists the single tracked window rectangle.
// The record is keyed by nothing: a save overwrites it wholesale.
type WindowStore interface {
	// LoadWindow returns the stored rectangle. ok is false when nothing is stored.
	// Returns error only for storage failures, not a missing record.
	LoadWindow(ctx context.Context) (rect model.WindowRect, ok bool, err error)

	// SaveWindow overwrites the stored rectangle.
	SaveWindow(ctx context.Context, rect model.WindowRect) error
}

// RunRecord describes one controller run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Target     int
	FiresMade  int
	Outcome    string
	Detail     string
}

// TransitionRecord is one state change within a run.
type TransitionRecord struct {
	RunID               string
	Seq                 int
	From                string
	To                  string
	Reason              string
	FiresMade           int
	ConsecutiveFailures int
	At                  time.Time
}

// Journal records runs for offline inspection. Nothing in a run reads it back.
type Journal interface {
	StartRun(ctx context.Context, run RunRecord) error
	RecordTransition(ctx context.Context, t TransitionRecord) error
	FinishRun(ctx context.Context, run RunRecord) error
}

// JournalReader lists recorded runs.
type JournalReader interface {
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Transitions(ctx context.Context, runID string) ([]TransitionRecord, error)
}
