package desktop

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/richinex/firemaker/model"
	"github.com/richinex/firemaker/window"
)

// windowSystem is the part of the display the lister reads.
type windowSystem interface {
	StackingOrder() ([]uint32, error)
	ActiveWindow() (uint32, error)
	WindowName(id uint32) (string, error)
	WindowHidden(id uint32) bool
	WindowGeometry(id uint32) (model.WindowRect, error)
}

// WindowLister lists client windows and ranks them by focus using the active
// window and the EWMH stacking order.
type WindowLister struct {
	x windowSystem
}

// NewWindowLister creates a lister on d.
func NewWindowLister(d *Display) *WindowLister {
	return &WindowLister{x: d}
}

// ListWindows returns visible windows whose name contains title, ignoring case.
// The active window has rank 0; the rest are ranked from the top of the stack down.
func (l *WindowLister) ListWindows(ctx context.Context, title string) ([]window.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stack, err := l.x.StackingOrder()
	if err != nil {
		return nil, fmt.Errorf("read client list: %w", err)
	}
	active, activeErr := l.x.ActiveWindow()
	needle := strings.ToLower(title)

	var candidates []window.Candidate
	for i := len(stack) - 1; i >= 0; i-- {
		id := stack[i]
		name, err := l.x.WindowName(id)
		if err != nil || !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		if l.x.WindowHidden(id) {
			continue
		}
		rect, err := l.x.WindowGeometry(id)
		if err != nil {
			// Windows can vanish between listing and query.
			continue
		}
		rank := len(stack) - i
		if activeErr == nil && id == active {
			rank = 0
		}
		candidates = append(candidates, window.Candidate{
			ID:        strconv.FormatUint(uint64(id), 10),
			Title:     name,
			Rect:      rect,
			FocusRank: rank,
		})
	}
	return candidates, nil
}

var _ window.Lister = (*WindowLister)(nil)
