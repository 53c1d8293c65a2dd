// Package window resolves the on-screen rectangle of the game client.
//
// Information Hiding:
// - How windows are enumerated (Lister implementation)
// - Where the resolved rectangle is persisted (Store implementation)
// - Selection policy when several windows match the title
//
// A Locator is process-wide state with an explicit lifecycle: the persisted
// record is loaded once, on first use, and overwritten on every successful
// refresh. Only one agent instance may use a given Store.
package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/richinex/firemaker/model"
)

// ErrWindowNotFound is returned when no window matches the configured title.
var ErrWindowNotFound = errors.New("window not found")

// Candidate is one window reported by a Lister.
type Candidate struct {
	ID    string
	Title string
	Rect  model.WindowRect
	// FocusRank orders windows by recency of focus. 0 is the active window;
	// larger values are further down the stacking order.
	FocusRank int
}

// Lister enumerates top-level windows whose title contains a substring.
type Lister interface {
	ListWindows(ctx context.Context, title string) ([]Candidate, error)
}

// Store persists the single tracked window rectangle.
type Store interface {
	// LoadWindow returns the stored rectangle, or ok=false when nothing is stored.
	LoadWindow(ctx context.Context) (rect model.WindowRect, ok bool, err error)

	// SaveWindow overwrites the stored rectangle.
	SaveWindow(ctx context.Context, rect model.WindowRect) error
}

// Locator caches the resolved window rectangle.
type Locator struct {
	title  string
	lister Lister
	store  Store
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	cached *model.WindowRect
}

// NewLocator creates a locator for windows whose title contains title.
// store may be nil, in which case nothing is persisted.
func NewLocator(title string, lister Lister, store Store, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		title:  title,
		lister: lister,
		store:  store,
		logger: logger.Named("window"),
	}
}

// Resolve returns the window rectangle.
//
// Without force, a cached or persisted rectangle is returned unchecked.
// Otherwise the window list is queried; when several windows match, the
// most recently focused one wins. The result is persisted and cached.
func (l *Locator) Resolve(ctx context.Context, force bool) (model.WindowRect, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		l.loaded = true
		l.loadStored(ctx)
	}
	if l.cached != nil && !force {
		return *l.cached, nil
	}

	candidates, err := l.lister.ListWindows(ctx, l.title)
	if err != nil {
		return model.WindowRect{}, fmt.Errorf("list windows: %w", err)
	}
	chosen, ok := pick(candidates)
	if !ok {
		return model.WindowRect{}, fmt.Errorf("%w: no window titled %q", ErrWindowNotFound, l.title)
	}
	if len(candidates) > 1 {
		l.logger.Info("multiple windows matched; using most recently focused",
			zap.Int("matches", len(candidates)),
			zap.String("id", chosen.ID),
			zap.String("title", chosen.Title))
	}

	if l.store != nil {
		if err := l.store.SaveWindow(ctx, chosen.Rect); err != nil {
			// The rectangle is still usable for this run.
			l.logger.Warn("failed to persist window rectangle", zap.Error(err))
		}
	}
	rect := chosen.Rect
	l.cached = &rect
	l.logger.Info("window resolved", zap.Stringer("rect", rect), zap.String("title", chosen.Title))
	return rect, nil
}

// Invalidate drops the cached rectangle so the next Resolve queries the OS.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = true
	l.cached = nil
}

// Current returns the cached rectangle without resolving.
func (l *Locator) Current() (model.WindowRect, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		return model.WindowRect{}, false
	}
	return *l.cached, true
}

func (l *Locator) loadStored(ctx context.Context) {
	if l.store == nil {
		return
	}
	rect, ok, err := l.store.LoadWindow(ctx)
	switch {
	case err != nil:
		l.logger.Warn("failed to load stored window rectangle", zap.Error(err))
	case ok && rect.Valid():
		l.cached = &rect
		l.logger.Debug("loaded stored window rectangle", zap.Stringer("rect", rect))
	}
}

// pick applies the selection policy: valid rectangles only, lowest focus
// rank first, then larger area, then window id.
func pick(candidates []Candidate) (Candidate, bool) {
	valid := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Rect.Valid() {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(valid, func(i, j int) bool {
		a, b := valid[i], valid[j]
		if a.FocusRank != b.FocusRank {
			return a.FocusRank < b.FocusRank
		}
		areaA, areaB := a.Rect.Width*a.Rect.Height, b.Rect.Width*b.Rect.Height
		if areaA != areaB {
			return areaA > areaB
		}
		return a.ID < b.ID
	})
	return valid[0], true
}
