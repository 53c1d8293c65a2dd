// Package humanoid synthesizes human-like pointer movement and clicks on top
// of a raw input backend.
//
// Movement follows a cubic Bezier curve with randomized control points, an
// ease-in-out velocity profile and a Fitts's-law duration clamped into the
// configured range. A press is always followed by a release once the button
// went down, even if the caller's context is cancelled mid-hold.
package humanoid

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/firemaker/model"
)

// Backend is the raw input device. Coordinates are absolute screen pixels.
type Backend interface {
	MoveMouse(ctx context.Context, x, y int) error
	MouseDown(ctx context.Context) error
	MouseUp(ctx context.Context) error
	KeyTap(ctx context.Context, key string) error
	CursorPosition(ctx context.Context) (x, y int, err error)
}

// Config controls movement timing.
type Config struct {
	// Move bounds the duration of one pointer movement.
	Move model.DurationRange
	// Hold bounds how long the button stays pressed.
	Hold model.DurationRange
	// StepsPerSecond is the pointer update rate during movement.
	StepsPerSecond int
	// FittsA and FittsB are the Fitts's-law intercept and slope in milliseconds.
	FittsA float64
	FittsB float64
	// Rng drives every random choice. Nil seeds from the clock.
	Rng *rand.Rand
}

// DefaultConfig mirrors the stock delay ranges.
func DefaultConfig() Config {
	return Config{
		Move:           model.DurationRange{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond},
		Hold:           model.DurationRange{Min: 50 * time.Millisecond, Max: 120 * time.Millisecond},
		StepsPerSecond: 90,
		FittsA:         250,
		FittsB:         120,
	}
}

// Humanoid drives a Backend with human-like timing.
type Humanoid struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is replaced in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Humanoid.
func New(backend Backend, cfg Config, logger *zap.Logger) *Humanoid {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.StepsPerSecond <= 0 {
		cfg.StepsPerSecond = DefaultConfig().StepsPerSecond
	}
	return &Humanoid{
		backend: backend,
		cfg:     cfg,
		logger:  logger.Named("humanoid"),
		rng:     rng,
		sleep:   sleepContext,
	}
}

// Sleep pauses, respecting context cancellation.
func (h *Humanoid) Sleep(ctx context.Context, d time.Duration) error {
	return h.sleep(ctx, d)
}

// MoveTo glides the pointer to (x, y).
func (h *Humanoid) MoveTo(ctx context.Context, x, y int) error {
	end := pixelPoint(x, y)

	sx, sy, err := h.backend.CursorPosition(ctx)
	if err != nil {
		// Without a start point, jump straight to the target.
		h.logger.Debug("cursor position unavailable", zap.Error(err))
		return h.backend.MoveMouse(ctx, x, y)
	}
	start := pixelPoint(sx, sy)

	_, dist := start.heading(end)
	duration := h.movementDuration(dist)
	steps := int(duration.Seconds() * float64(h.cfg.StepsPerSecond))
	if steps < 2 {
		steps = 2
	}
	path := h.bezierPath(start, end, steps)

	begin := time.Now()
	for i := range path {
		t := float64(i) / float64(len(path)-1)
		eased := easeInOutCubic(t)
		idx := int(math.Round(eased * float64(len(path)-1)))
		px, py := path[idx].pixel()

		target := begin.Add(time.Duration(t * float64(duration)))
		if wait := time.Until(target); wait > 0 {
			if err := h.sleep(ctx, wait); err != nil {
				return err
			}
		}
		if err := h.backend.MoveMouse(ctx, px, py); err != nil {
			return fmt.Errorf("move pointer: %w", err)
		}
	}
	// The eased sampling ends on the last path point, which is exactly end.
	return nil
}

// Click moves to (x, y), presses, holds and releases the left button.
func (h *Humanoid) Click(ctx context.Context, x, y int) error {
	if err := h.MoveTo(ctx, x, y); err != nil {
		return err
	}
	if err := h.backend.MouseDown(ctx); err != nil {
		return fmt.Errorf("press button: %w", err)
	}

	hold := h.pick(h.cfg.Hold)
	holdErr := h.sleep(ctx, hold)

	// Release even if the hold was interrupted so the button never stays down.
	if err := h.backend.MouseUp(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("release button: %w", err)
	}
	h.logger.Debug("click", zap.Int("x", x), zap.Int("y", y), zap.Duration("hold", hold))
	return holdErr
}

// Press taps a key.
func (h *Humanoid) Press(ctx context.Context, key string) error {
	if err := h.backend.KeyTap(ctx, key); err != nil {
		return fmt.Errorf("tap %q: %w", key, err)
	}
	return nil
}

// easeInOutCubic provides a smooth acceleration and deceleration profile.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// movementDuration applies Fitts's law, MT = A + B*log2(1 + D/W), with
// +/-15% noise, clamped into the configured movement range.
func (h *Humanoid) movementDuration(distance float64) time.Duration {
	const w = 30.0 // assumed target width in pixels

	h.mu.Lock()
	noise := h.rng.Float64()*0.3 - 0.15
	h.mu.Unlock()

	mt := h.cfg.FittsA + h.cfg.FittsB*math.Log2(1.0+distance/w)
	mt += mt * noise
	d := time.Duration(mt * float64(time.Millisecond))

	if d < h.cfg.Move.Min {
		d = h.cfg.Move.Min
	}
	if h.cfg.Move.Max > 0 && d > h.cfg.Move.Max {
		d = h.cfg.Move.Max
	}
	return d
}

// bezierPath builds a cubic Bezier from start to end whose control points are
// pushed sideways by a random fraction of the distance.
func (h *Humanoid) bezierPath(start, end point, steps int) []point {
	dir, dist := start.heading(end)
	if dist < 1.0 {
		return []point{end, end}
	}
	side := dir.left()

	h.mu.Lock()
	bend1 := (h.rng.Float64()*2 - 1) * 0.15 * dist
	bend2 := (h.rng.Float64()*2 - 1) * 0.15 * dist
	h.mu.Unlock()

	return cubic{
		from: start,
		c1:   start.plus(dir.scaled(dist / 3)).plus(side.scaled(bend1)),
		c2:   start.plus(dir.scaled(dist * 2 / 3)).plus(side.scaled(bend2)),
		to:   end,
	}.sample(steps)
}

func (h *Humanoid) pick(r model.DurationRange) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return r.Pick(h.rng)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
