// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"math/rand"
	"time"
)

// WindowRect is the on-screen rectangle of the game client.
// Origin is the top-left corner of the screen.
type WindowRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the rectangle has a positive area.
func (r WindowRect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// ContainsRelative reports whether a window-relative point lies inside the rectangle.
func (r WindowRect) ContainsRelative(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.Width && y < r.Height
}

// ContainsAbsolute reports whether an absolute screen point lies inside the rectangle.
func (r WindowRect) ContainsAbsolute(x, y int) bool {
	return r.ContainsRelative(x-r.X, y-r.Y)
}

// String returns the rectangle as "WxH+X+Y", the X11 geometry notation.
func (r WindowRect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Frame is an immutable screenshot of a WindowRect.
// Image holds encoded bytes (MediaType says which encoding).
type Frame struct {
	Image      []byte
	MediaType  string
	Rect       WindowRect
	CapturedAt time.Time
}

// GroundedPoint is a click target. Rel is relative to Rect; Abs is the
// absolute screen coordinate derived from it.
type GroundedPoint struct {
	Label string
	RelX  int
	RelY  int
	AbsX  int
	AbsY  int
	Rect  WindowRect
}

// Ground converts a window-relative coordinate into a GroundedPoint.
// It returns false when the point falls outside the rectangle.
func Ground(rect WindowRect, label string, relX, relY int) (GroundedPoint, bool) {
	if !rect.ContainsRelative(relX, relY) {
		return GroundedPoint{}, false
	}
	return GroundedPoint{
		Label: label,
		RelX:  relX,
		RelY:  relY,
		AbsX:  rect.X + relX,
		AbsY:  rect.Y + relY,
		Rect:  rect,
	}, true
}

// String returns the absolute coordinate for logs.
func (p GroundedPoint) String() string {
	return fmt.Sprintf("(%d, %d)", p.AbsX, p.AbsY)
}

// SkillResult reports the outcome of a skill invocation.
type SkillResult struct {
	Success bool
	Detail  string
	Points  []GroundedPoint
	Err     error
}

// Succeeded creates a successful result.
func Succeeded(detail string, points ...GroundedPoint) SkillResult {
	return SkillResult{Success: true, Detail: detail, Points: points}
}

// Failed creates a failed result carrying err.
func Failed(err error, points ...GroundedPoint) SkillResult {
	detail := "unknown failure"
	if err != nil {
		detail = err.Error()
	}
	return SkillResult{Success: false, Detail: detail, Points: points, Err: err}
}

// DurationRange is an inclusive [Min, Max] range used for randomized delays.
type DurationRange struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// Pick draws a uniformly distributed duration from the range.
func (r DurationRange) Pick(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)+1))
}

// Validate checks that the range is non-negative and ordered.
func (r DurationRange) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("negative duration in range [%s, %s]", r.Min, r.Max)
	}
	if r.Max < r.Min {
		return fmt.Errorf("inverted range [%s, %s]", r.Min, r.Max)
	}
	return nil
}
