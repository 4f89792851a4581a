// Package geom holds the board-space geometry shared by ordering, layout and
// slicing. Board coordinates address item centers; y grows downwards.
package geom

import "math"

type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

type Size struct {
	W, H float64
}

// Rect is an axis-aligned rectangle given by its top-left corner.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

func (r Rect) TopLeft() Point { return Point{X: r.X, Y: r.Y} }

// RectAround returns the rectangle of size s centered on c.
func RectAround(c Point, s Size) Rect {
	return Rect{X: c.X - s.W/2, Y: c.Y - s.H/2, W: s.W, H: s.H}
}

// Placeable is anything with a center and a size: board widgets and pending
// tiles alike.
type Placeable interface {
	Center() Point
	Size() Size
}

// Bounds returns the bounding box of the items, and false for an empty set.
func Bounds[T Placeable](items []T) (Rect, bool) {
	if len(items) == 0 {
		return Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, it := range items {
		r := RectAround(it.Center(), it.Size())
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.X+r.W)
		maxY = math.Max(maxY, r.Y+r.H)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}
