// Package skills implements the perception and action primitives the agent
// composes into a task.
//
// Information Hiding:
// - Prompt wording and answer shapes for each question
// - Retry policy for transient vision failures
// - Coordinate grounding (direct pixels or inventory slot grid)
// - Human-likeness: click jitter and reaction delays
//
// Skills never panic and never retry input. A failed find or verification is a
// returned error; an input or capture I/O error is wrapped with ErrFatal.
package skills

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/richinex/firemaker/internal/parse"
	"github.com/richinex/firemaker/llm"
	"github.com/richinex/firemaker/model"
)

// ErrFatal marks input-device and screen-capture failures. The run cannot continue.
var ErrFatal = errors.New("fatal i/o failure")

// Vision answers a question about a frame.
type Vision interface {
	Ask(ctx context.Context, q llm.Query) (llm.Response, error)
}

// InputDriver performs pointer actions and human-paced waits.
type InputDriver interface {
	Click(ctx context.Context, x, y int) error
	Sleep(ctx context.Context, d time.Duration) error
}

// FrameSource captures a screen region.
type FrameSource interface {
	Capture(ctx context.Context, rect model.WindowRect) (*model.Frame, error)
}

// WindowSource resolves the game window rectangle.
type WindowSource interface {
	Resolve(ctx context.Context, force bool) (model.WindowRect, error)
}

// LocateMode selects how item positions are asked for.
type LocateMode int

const (
	// LocateCoordinate asks for pixel coordinates.
	LocateCoordinate LocateMode = iota
	// LocateSlot asks for an inventory slot and maps it through the Grid.
	LocateSlot
)

func (m LocateMode) String() string {
	if m == LocateSlot {
		return "slot"
	}
	return "coordinate"
}

// ParseLocateMode parses "coordinate" or "slot".
func ParseLocateMode(s string) (LocateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coordinate", "coordinates":
		return LocateCoordinate, nil
	case "slot", "grid":
		return LocateSlot, nil
	default:
		return 0, fmt.Errorf("unknown locate mode: %s", s)
	}
}

// Config tunes the skills.
type Config struct {
	// Jitter bounds the random click offset in pixels on each axis.
	Jitter        int
	BeforeClick   model.DurationRange
	AfterClick    model.DurationRange
	BetweenClicks time.Duration

	Mode LocateMode
	Grid Grid
	// Items names every item the task handles. A location answer that names
	// one of them is never read as the position of another.
	Items []string

	// MaxRetries is how many extra attempts a transient vision failure gets.
	MaxRetries int
	RetryBase  time.Duration

	Rng *rand.Rand
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Jitter:        3,
		BeforeClick:   model.DurationRange{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
		AfterClick:    model.DurationRange{Min: 100 * time.Millisecond, Max: 300 * time.Millisecond},
		BetweenClicks: 300 * time.Millisecond,
		Mode:          LocateCoordinate,
		Grid:          DefaultGrid(),
		MaxRetries:    2,
		RetryBase:     500 * time.Millisecond,
	}
}

// Library is the set of skills bound to one window, vision client and input driver.
type Library struct {
	vision  Vision
	input   InputDriver
	frames  FrameSource
	windows WindowSource
	cfg     Config
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Library.
func New(vision Vision, input InputDriver, frames FrameSource, windows WindowSource, cfg Config, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Library{
		vision:  vision,
		input:   input,
		frames:  frames,
		windows: windows,
		cfg:     cfg,
		logger:  logger.Named("skills"),
		rng:     rng,
	}
}

// CaptureFrame takes a fresh screenshot of the current window.
// Window resolution errors are returned as is; capture errors wrap ErrFatal.
func (l *Library) CaptureFrame(ctx context.Context) (*model.Frame, error) {
	rect, err := l.windows.Resolve(ctx, false)
	if err != nil {
		return nil, err
	}
	frame, err := l.frames.Capture(ctx, rect)
	if err != nil {
		return nil, fmt.Errorf("%w: capture %s: %w", ErrFatal, rect, err)
	}
	return frame, nil
}

// FindItem asks where name is in frame and grounds the answer inside the
// frame's window. Parse errors (including parse.ErrAbsent) are returned
// wrapped; a point outside the window yields parse.ErrOutOfBounds.
func (l *Library) FindItem(ctx context.Context, frame *model.Frame, name string) (model.GroundedPoint, error) {
	q := llm.Query{Frame: frame, Prompt: locateCoordinatePrompt(name), SchemaHint: locateCoordinateHint(name)}
	shape := parse.Coordinate
	if l.cfg.Mode == LocateSlot {
		q = llm.Query{Frame: frame, Prompt: locateSlotPrompt(name), SchemaHint: locateSlotHint(name)}
		shape = parse.SlotIndex
	}

	resp, err := l.ask(ctx, q)
	if err != nil {
		return model.GroundedPoint{}, fmt.Errorf("find %s: %w", name, err)
	}
	v, err := parse.ExtractNear(resp.Text, shape, name, l.cfg.Items...)
	if err != nil {
		return model.GroundedPoint{}, fmt.Errorf("find %s: %w", name, err)
	}

	relX, relY := v.X, v.Y
	if shape == parse.SlotIndex {
		relX, relY, err = l.cfg.Grid.SlotCenter(v.Slot)
		if err != nil {
			return model.GroundedPoint{}, fmt.Errorf("find %s: %w: %v", name, parse.ErrOutOfBounds, err)
		}
	}

	point, ok := model.Ground(frame.Rect, name, relX, relY)
	if !ok {
		return model.GroundedPoint{}, fmt.Errorf("find %s: %w: (%d, %d) outside %s",
			name, parse.ErrOutOfBounds, relX, relY, frame.Rect)
	}
	l.logger.Info("item located",
		zap.String("item", name),
		zap.Int("rel_x", point.RelX),
		zap.Int("rel_y", point.RelY),
		zap.Int("abs_x", point.AbsX),
		zap.Int("abs_y", point.AbsY),
	)
	return point, nil
}

// ClickAt clicks near point. The offset is at most jitter pixels on each axis
// and is kept inside the window. Once started the click sequence runs to
// completion even if ctx is cancelled.
func (l *Library) ClickAt(ctx context.Context, point model.GroundedPoint, jitter int) model.SkillResult {
	ctx = context.WithoutCancel(ctx)
	target := l.jittered(point, jitter)

	if err := l.input.Sleep(ctx, l.pick(l.cfg.BeforeClick)); err != nil {
		return model.Failed(fmt.Errorf("%w: wait before click: %w", ErrFatal, err))
	}
	if err := l.input.Click(ctx, target.AbsX, target.AbsY); err != nil {
		return model.Failed(fmt.Errorf("%w: click %s at %s: %w", ErrFatal, point.Label, target, err), target)
	}
	l.logger.Info("click",
		zap.String("item", point.Label),
		zap.Int("x", target.AbsX),
		zap.Int("y", target.AbsY),
	)
	if err := l.input.Sleep(ctx, l.pick(l.cfg.AfterClick)); err != nil {
		return model.Failed(fmt.Errorf("%w: wait after click: %w", ErrFatal, err), target)
	}
	return model.Succeeded(fmt.Sprintf("clicked %s at %s", point.Label, target), target)
}

// UseItemOnItem uses a on b: both items are located in one fresh frame, then
// a is clicked, then b. Nothing is clicked unless both were found.
func (l *Library) UseItemOnItem(ctx context.Context, a, b string) model.SkillResult {
	frame, err := l.CaptureFrame(ctx)
	if err != nil {
		return model.Failed(err)
	}
	pa, err := l.FindItem(ctx, frame, a)
	if err != nil {
		return model.Failed(err)
	}
	pb, err := l.FindItem(ctx, frame, b)
	if err != nil {
		return model.Failed(err, pa)
	}

	first := l.ClickAt(ctx, pa, l.cfg.Jitter)
	if !first.Success {
		return first
	}
	if err := l.input.Sleep(context.WithoutCancel(ctx), l.cfg.BetweenClicks); err != nil {
		return model.Failed(fmt.Errorf("%w: wait between clicks: %w", ErrFatal, err), first.Points...)
	}
	second := l.ClickAt(ctx, pb, l.cfg.Jitter)
	points := append(append([]model.GroundedPoint{}, first.Points...), second.Points...)
	if !second.Success {
		return model.Failed(second.Err, points...)
	}
	return model.Succeeded(fmt.Sprintf("used %s on %s", a, b), points...)
}

// VerifyOutcome asks a yes/no question about a fresh frame.
func (l *Library) VerifyOutcome(ctx context.Context, expected string) (bool, error) {
	frame, err := l.CaptureFrame(ctx)
	if err != nil {
		return false, err
	}
	resp, err := l.ask(ctx, llm.Query{Frame: frame, Prompt: verifyPrompt(expected), SchemaHint: verifyHint})
	if err != nil {
		return false, fmt.Errorf("verify %q: %w", expected, err)
	}
	v, err := parse.Extract(resp.Text, parse.Boolean)
	if err != nil {
		return false, fmt.Errorf("verify %q: %w", expected, err)
	}
	l.logger.Info("outcome verified", zap.String("expected", expected), zap.Bool("observed", v.Bool))
	return v.Bool, nil
}

// MoveAway clicks the ground at a fixed fraction of the window so the
// character walks off the tile it is standing on.
func (l *Library) MoveAway(ctx context.Context, fracX, fracY float64) model.SkillResult {
	rect, err := l.windows.Resolve(ctx, false)
	if err != nil {
		return model.Failed(err)
	}
	point, ok := model.Ground(rect, "step away", int(fracX*float64(rect.Width)), int(fracY*float64(rect.Height)))
	if !ok {
		return model.Failed(fmt.Errorf("%w: step-away point (%.2f, %.2f) outside %s", parse.ErrOutOfBounds, fracX, fracY, rect))
	}
	return l.ClickAt(ctx, point, l.cfg.Jitter)
}

// Describe asks for a one-sentence description of frame.
func (l *Library) Describe(ctx context.Context, frame *model.Frame) (string, error) {
	resp, err := l.ask(ctx, llm.Query{Frame: frame, Prompt: describePrompt, SchemaHint: describeHint})
	if err != nil {
		return "", err
	}
	v, err := parse.Extract(resp.Text, parse.FreeText)
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// ask retries transient vision failures with exponential backoff.
func (l *Library) ask(ctx context.Context, q llm.Query) (llm.Response, error) {
	var resp llm.Response
	operation := func() error {
		r, err := l.vision.Ask(ctx, q)
		if err != nil {
			if llm.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = l.cfg.RetryBase
	expo.MaxElapsedTime = 0
	retries := l.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(retries)), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		l.logger.Warn("vision call failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	return resp, err
}

// jittered offsets point by up to jitter pixels and clamps it inside the window.
func (l *Library) jittered(point model.GroundedPoint, jitter int) model.GroundedPoint {
	if jitter <= 0 {
		return point
	}
	l.mu.Lock()
	dx := l.rng.Intn(2*jitter+1) - jitter
	dy := l.rng.Intn(2*jitter+1) - jitter
	l.mu.Unlock()

	rect := point.Rect
	relX := clamp(point.RelX+dx, 0, rect.Width-1)
	relY := clamp(point.RelY+dy, 0, rect.Height-1)
	out, ok := model.Ground(rect, point.Label, relX, relY)
	if !ok {
		return point
	}
	return out
}

func (l *Library) pick(r model.DurationRange) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return r.Pick(l.rng)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
