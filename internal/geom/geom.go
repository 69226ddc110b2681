// Package geom provides the small amount of 2D geometry the compositor
// core needs: points in screen space and axis-aligned rectangles.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in global screen coordinates.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p relative to q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// String returns a string representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Size is a width/height pair.
type Size struct {
	W float64
	H float64
}

// IsEmpty reports whether either dimension is not positive.
func (s Size) IsEmpty() bool {
	return s.W <= 0 || s.H <= 0
}

// Rect is an axis-aligned rectangle. The right and bottom edges are exclusive.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// R is shorthand for Rect{X: x, Y: y, W: w, H: h}.
func R(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{W: r.W, H: r.H}
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Union returns the smallest rectangle containing both r and o.
// An empty rectangle does not contribute.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	x0 := math.Min(r.X, o.X)
	y0 := math.Min(r.Y, o.Y)
	x1 := math.Max(r.X+r.W, o.X+o.W)
	y1 := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Clamp returns p moved to the nearest position inside r.
// The result never lands on the exclusive right or bottom edge.
func (r Rect) Clamp(p Point) Point {
	if r.IsEmpty() {
		return p
	}
	return Point{
		X: clamp(p.X, r.X, r.X+r.W-1),
		Y: clamp(p.Y, r.Y, r.Y+r.H-1),
	}
}

// MapNormalized maps a normalized device coordinate (0..1 on each axis)
// into r. Values outside 0..1 produce points outside r; no clamping is done.
func (r Rect) MapNormalized(nx, ny float64) Point {
	return Point{X: r.X + nx*r.W, Y: r.Y + ny*r.H}
}

// String returns a string representation of the rectangle.
func (r Rect) String() string {
	return fmt.Sprintf("%gx%g+%g+%g", r.W, r.H, r.X, r.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
