package humanoid

import "math"

// point is a screen position in fractional pixels.
type point struct {
	X, Y float64
}

func pixelPoint(x, y int) point {
	return point{X: float64(x), Y: float64(y)}
}

func (p point) plus(q point) point {
	return point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p point) scaled(k float64) point {
	return point{X: p.X * k, Y: p.Y * k}
}

// heading returns the unit direction from p to q and the distance between them.
// The direction is zero when the points coincide.
func (p point) heading(q point) (point, float64) {
	dx, dy := q.X-p.X, q.Y-p.Y
	dist := math.Hypot(dx, dy)
	if dist < 1e-9 {
		return point{}, 0
	}
	return point{X: dx / dist, Y: dy / dist}, dist
}

// left rotates a direction by 90 degrees.
func (p point) left() point {
	return point{X: -p.Y, Y: p.X}
}

func (p point) pixel() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// cubic is a cubic Bezier curve.
type cubic struct {
	from, c1, c2, to point
}

// at evaluates the curve for t in [0, 1].
func (c cubic) at(t float64) point {
	u := 1 - t
	return c.from.scaled(u * u * u).
		plus(c.c1.scaled(3 * u * u * t)).
		plus(c.c2.scaled(3 * u * t * t)).
		plus(c.to.scaled(t * t * t))
}

// sample returns n evenly spaced points, pinned to both endpoints.
func (c cubic) sample(n int) []point {
	if n < 2 {
		n = 2
	}
	pts := make([]point, n)
	for i := range pts {
		pts[i] = c.at(float64(i) / float64(n-1))
	}
	pts[0], pts[n-1] = c.from, c.to
	return pts
}
