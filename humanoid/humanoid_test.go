package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/richinex/firemaker/model"
)

type fakeBackend struct {
	x, y    int
	moves   [][2]int
	events  []string
	moveErr error
	downErr error
	posErr  error
}

func (f *fakeBackend) MoveMouse(_ context.Context, x, y int) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.x, f.y = x, y
	f.moves = append(f.moves, [2]int{x, y})
	return nil
}

func (f *fakeBackend) MouseDown(context.Context) error {
	if f.downErr != nil {
		return f.downErr
	}
	f.events = append(f.events, "down")
	return nil
}

func (f *fakeBackend) MouseUp(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.events = append(f.events, "up")
	return nil
}

func (f *fakeBackend) KeyTap(_ context.Context, key string) error {
	f.events = append(f.events, "key:"+key)
	return nil
}

func (f *fakeBackend) CursorPosition(context.Context) (int, int, error) {
	return f.x, f.y, f.posErr
}

func newTestHumanoid(b Backend) (*Humanoid, *[]time.Duration) {
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(1))
	h := New(b, cfg, zap.NewNop())
	var slept []time.Duration
	h.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return h, &slept
}

func TestClickEndsExactlyOnTarget(t *testing.T) {
	b := &fakeBackend{x: 10, y: 10}
	h, _ := newTestHumanoid(b)

	require.NoError(t, h.Click(context.Background(), 640, 360))

	require.NotEmpty(t, b.moves)
	assert.Equal(t, [2]int{640, 360}, b.moves[len(b.moves)-1])
	assert.Equal(t, []string{"down", "up"}, b.events)
	assert.Greater(t, len(b.moves), 2, "movement must be a path, not a jump")
}

func TestClickReleasesAfterInterruptedHold(t *testing.T) {
	b := &fakeBackend{}
	h, _ := newTestHumanoid(b)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h.sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}
	// Cancel once the button is down: the hold sleep observes it.
	b2 := &cancelOnDown{fakeBackend: b, cancel: cancel, calls: &calls}
	h.backend = b2

	err := h.Click(ctx, 100, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"down", "up"}, b.events)
	assert.Equal(t, 1, calls)
}

type cancelOnDown struct {
	*fakeBackend
	cancel context.CancelFunc
	calls  *int
}

func (c *cancelOnDown) MouseDown(ctx context.Context) error {
	*c.calls++
	err := c.fakeBackend.MouseDown(ctx)
	c.cancel()
	return err
}

func TestClickPressFailureSkipsRelease(t *testing.T) {
	boom := errors.New("no display")
	b := &fakeBackend{downErr: boom}
	h, _ := newTestHumanoid(b)

	err := h.Click(context.Background(), 5, 5)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, b.events)
}

func TestMoveToWithoutCursorPositionJumps(t *testing.T) {
	b := &fakeBackend{posErr: errors.New("unsupported")}
	h, _ := newTestHumanoid(b)

	require.NoError(t, h.MoveTo(context.Background(), 30, 40))
	assert.Equal(t, [][2]int{{30, 40}}, b.moves)
}

func TestMoveErrorPropagates(t *testing.T) {
	boom := errors.New("display unavailable")
	b := &fakeBackend{moveErr: boom}
	h, _ := newTestHumanoid(b)
	assert.ErrorIs(t, h.MoveTo(context.Background(), 300, 300), boom)
}

func TestMovementDurationIsClamped(t *testing.T) {
	h, _ := newTestHumanoid(&fakeBackend{})
	h.cfg.Move = model.DurationRange{Min: 300 * time.Millisecond, Max: 800 * time.Millisecond}

	for _, d := range []float64{0, 5, 200, 5000, 1e6} {
		got := h.movementDuration(d)
		assert.GreaterOrEqual(t, got, 300*time.Millisecond)
		assert.LessOrEqual(t, got, 800*time.Millisecond)
	}
}

func TestBezierPathEndpoints(t *testing.T) {
	h, _ := newTestHumanoid(&fakeBackend{})
	start, end := point{X: 0, Y: 0}, point{X: 400, Y: 300}

	path := h.bezierPath(start, end, 50)
	require.Len(t, path, 50)
	assert.Equal(t, start, path[0])
	assert.Equal(t, end, path[len(path)-1])
}

func TestCubicCurve(t *testing.T) {
	line := cubic{from: point{}, c1: point{X: 100}, c2: point{X: 200}, to: point{X: 300}}
	mid := line.at(0.5)
	assert.InDelta(t, 150, mid.X, 1e-9)
	assert.InDelta(t, 0, mid.Y, 1e-9)

	pts := line.sample(1)
	require.Len(t, pts, 2)
	assert.Equal(t, point{X: 300}, pts[1])

	dir, dist := point{X: 1, Y: 1}.heading(point{X: 4, Y: 5})
	assert.InDelta(t, 5, dist, 1e-9)
	assert.InDelta(t, 0.6, dir.X, 1e-9)
	assert.InDelta(t, -0.8, dir.left().X, 1e-9)

	_, dist = point{X: 2, Y: 2}.heading(point{X: 2, Y: 2})
	assert.Zero(t, dist)
}

func TestEaseInOutCubic(t *testing.T) {
	assert.InDelta(t, 0.0, easeInOutCubic(0), 1e-9)
	assert.InDelta(t, 0.5, easeInOutCubic(0.5), 1e-9)
	assert.InDelta(t, 1.0, easeInOutCubic(1), 1e-9)
	assert.Less(t, easeInOutCubic(0.1), 0.1, "starts slow")
}

func TestPress(t *testing.T) {
	b := &fakeBackend{}
	h, _ := newTestHumanoid(b)
	require.NoError(t, h.Press(context.Background(), "Escape"))
	assert.Equal(t, []string{"key:Escape"}, b.events)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
