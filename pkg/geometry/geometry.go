// Package geometry holds the 2D primitives shared by the viewport, calibration
// and drawing packages. Coordinates carry no space of their own: callers decide
// whether a Point is in image space or screen space.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is an (x, y) pair in pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func fromVec(v r2.Vec) Point {
	return Point{X: v.X, Y: v.Y}
}

// Add returns p+q
func (p Point) Add(q Point) Point {
	return fromVec(r2.Add(p.vec(), q.vec()))
}

// Sub returns p-q
func (p Point) Sub(q Point) Point {
	return fromVec(r2.Sub(p.vec(), q.vec()))
}

// Scale returns p scaled by f
func (p Point) Scale(f float64) Point {
	return fromVec(r2.Scale(f, p.vec()))
}

// Distance returns the Euclidean distance between a and b
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(b.vec(), a.vec()))
}

// Midpoint returns the point halfway between a and b
func Midpoint(a, b Point) Point {
	return fromVec(r2.Scale(0.5, r2.Add(a.vec(), b.vec())))
}

// PolygonArea returns the unsigned shoelace area of the implicitly closed
// polygon. Fewer than three points have no area.
func PolygonArea(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += r2.Cross(points[i].vec(), points[(i+1)%n].vec())
	}
	return math.Abs(sum) / 2
}

// Rect is an axis-aligned rectangle with non-negative size
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectFromCorners returns the bounding box of two opposite corners in either order
func RectFromCorners(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Min returns the top-left corner
func (r Rect) Min() Point {
	return Point{X: r.X, Y: r.Y}
}

// Max returns the bottom-right corner
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Center returns the rectangle's center
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Bounds returns the bounding box of points. An empty slice yields the zero Rect.
func Bounds(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
