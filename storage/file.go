// Package storage provides the JSON window record.
//
// Information Hiding:
// - File format and location hidden behind WindowStore
// - Writes go to a temporary file and are renamed into place

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/richinex/firemaker/model"
)

// FileWindowStore keeps the window rectangle in a small JSON file.
type FileWindowStore struct {
	mu   sync.Mutex
	path string
}

// NewFileWindowStore creates a store backed by the file at path.
// The file is created on first save.
func NewFileWindowStore(path string) *FileWindowStore {
	return &FileWindowStore{path: path}
}

// Path returns the backing file path.
func (s *FileWindowStore) Path() string {
	return s.path
}

// LoadWindow reads the stored rectangle. A missing file is not an error.
func (s *FileWindowStore) LoadWindow(ctx context.Context) (model.WindowRect, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.WindowRect{}, false, nil
	}
	if err != nil {
		return model.WindowRect{}, false, fmt.Errorf("failed to read window file: %w", err)
	}

	var rect model.WindowRect
	if err := json.Unmarshal(data, &rect); err != nil {
		return model.WindowRect{}, false, fmt.Errorf("failed to decode window file %s: %w", s.path, err)
	}
	if !rect.Valid() {
		return model.WindowRect{}, false, fmt.Errorf("window file %s holds invalid rectangle %s", s.path, rect)
	}
	return rect, true, nil
}

// SaveWindow overwrites the stored rectangle.
func (s *FileWindowStore) SaveWindow(ctx context.Context, rect model.WindowRect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rect, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode window rectangle: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create window file directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".window-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp window file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write window file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close window file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace window file: %w", err)
	}
	return nil
}

var _ WindowStore = (*FileWindowStore)(nil)
