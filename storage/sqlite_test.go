package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/richinex/firemaker/model"
)

func TestSqliteWindowSaveAndLoad(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	_, ok, err := storage.LoadWindow(ctx)
	if err != nil {
		t.Fatalf("LoadWindow failed: %v", err)
	}
	if ok {
		t.Fatal("expected no stored window in a fresh database")
	}

	first := model.WindowRect{X: 1, Y: 2, Width: 800, Height: 600}
	second := model.WindowRect{X: 0, Y: 0, Width: 1280, Height: 720}
	if err := storage.SaveWindow(ctx, first); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}
	if err := storage.SaveWindow(ctx, second); err != nil {
		t.Fatalf("SaveWindow overwrite failed: %v", err)
	}

	got, ok, err := storage.LoadWindow(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadWindow failed: ok=%v err=%v", ok, err)
	}
	if got != second {
		t.Errorf("expected %v, got %v", second, got)
	}
}

func TestSqliteRejectsInvalidWindow(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	if err := storage.SaveWindow(context.Background(), model.WindowRect{Width: 0, Height: 10}); err == nil {
		t.Error("expected error for zero-width window")
	}
}

func TestSqliteJournal(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	start := time.UnixMilli(1_700_000_000_000)

	if err := storage.StartRun(ctx, RunRecord{ID: "run-1", StartedAt: start, Target: 3}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	want := []TransitionRecord{
		{RunID: "run-1", Seq: 0, From: "Idle", To: "Locating", Reason: "start", At: start},
		{RunID: "run-1", Seq: 1, From: "Locating", To: "PerceivingInventory", Reason: "window resolved", At: start.Add(time.Second)},
	}
	for _, tr := range want {
		if err := storage.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition failed: %v", err)
		}
	}

	finish := RunRecord{ID: "run-1", FinishedAt: start.Add(time.Minute), FiresMade: 2, Outcome: "Aborted", Detail: "interrupted"}
	if err := storage.FinishRun(ctx, finish); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := storage.Transitions(ctx, "run-1")
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}

	runs, err := storage.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if r.FiresMade != 2 || r.Outcome != "Aborted" || r.Detail != "interrupted" || r.Target != 3 {
		t.Errorf("unexpected run record: %+v", r)
	}
	if !r.FinishedAt.Equal(finish.FinishedAt) {
		t.Errorf("expected finished_at %v, got %v", finish.FinishedAt, r.FinishedAt)
	}
}

func TestSqliteFinishUnknownRun(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	if err := storage.FinishRun(context.Background(), RunRecord{ID: "missing"}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestOpenSqliteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "firemaker.db")
	storage, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	defer storage.Close()

	rect := model.WindowRect{Width: 10, Height: 10}
	if err := storage.SaveWindow(context.Background(), rect); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}
}
