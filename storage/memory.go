// Package storage provides in-memory window and journal storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral runs

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/richinex/firemaker/model"
)

// InMemoryStorage implements WindowStore, Journal and JournalReader in memory.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu          sync.RWMutex
	window      *model.WindowRect
	runs        map[string]RunRecord
	transitions map[string][]TransitionRecord
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		runs:        make(map[string]RunRecord),
		transitions: make(map[string][]TransitionRecord),
	}
}

// LoadWindow returns the stored rectangle.
func (s *InMemoryStorage) LoadWindow(ctx context.Context) (model.WindowRect, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.window == nil {
		return model.WindowRect{}, false, nil
	}
	return *s.window, true, nil
}

// SaveWindow overwrites the stored rectangle.
func (s *InMemoryStorage) SaveWindow(ctx context.Context, rect model.WindowRect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = &rect
	return nil
}

// StartRun records a new run.
func (s *InMemoryStorage) StartRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %q already started", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// RecordTransition appends a transition to its run.
func (s *InMemoryStorage) RecordTransition(ctx context.Context, t TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[t.RunID]; !exists {
		return fmt.Errorf("unknown run %q", t.RunID)
	}
	s.transitions[t.RunID] = append(s.transitions[t.RunID], t)
	return nil
}

// FinishRun stores the outcome of a run.
func (s *InMemoryStorage) FinishRun(ctx context.Context, run RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.runs[run.ID]
	if !exists {
		return fmt.Errorf("unknown run %q", run.ID)
	}
	existing.FinishedAt = run.FinishedAt
	existing.FiresMade = run.FiresMade
	existing.Outcome = run.Outcome
	existing.Detail = run.Detail
	s.runs[run.ID] = existing
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *InMemoryStorage) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Transitions returns a copy of a run's transitions.
func (s *InMemoryStorage) Transitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to avoid external mutations
	copied := make([]TransitionRecord, len(s.transitions[runID]))
	copy(copied, s.transitions[runID])
	return copied, nil
}

var (
	_ WindowStore   = (*InMemoryStorage)(nil)
	_ Journal       = (*InMemoryStorage)(nil)
	_ JournalReader = (*InMemoryStorage)(nil)
)
