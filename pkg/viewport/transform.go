// Package viewport maps pointer coordinates between screen space and image
// space under a zoom factor and pan offset.
package viewport

import (
	"fmt"

	"github.com/menta2k/facade-measure/pkg/geometry"
)

const (
	DefaultMinZoom   = 0.2
	DefaultMaxZoom   = 5.0
	DefaultWheelStep = 1.05
)

// Bounds limits the zoom factor
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultBounds returns the [0.2, 5.0] zoom range
func DefaultBounds() Bounds {
	return Bounds{Min: DefaultMinZoom, Max: DefaultMaxZoom}
}

// Clamp limits z to the bounds
func (b Bounds) Clamp(z float64) float64 {
	if z < b.Min {
		return b.Min
	}
	if z > b.Max {
		return b.Max
	}
	return z
}

// Validate checks the bounds are usable
func (b Bounds) Validate() error {
	if b.Min <= 0 {
		return fmt.Errorf("min zoom must be positive (got %v)", b.Min)
	}
	if b.Max < b.Min {
		return fmt.Errorf("max zoom %v is below min zoom %v", b.Max, b.Min)
	}
	return nil
}

// Transform is a zoom factor and a screen-space pan offset. Screen = image*Zoom + Pan.
type Transform struct {
	Zoom float64        `json:"zoom"`
	Pan  geometry.Point `json:"pan"`
}

// Identity returns zoom 1 with no pan
func Identity() Transform {
	return Transform{Zoom: 1}
}

// ScreenToImage maps a screen-space point into image space
func ScreenToImage(p geometry.Point, zoom float64, pan geometry.Point) geometry.Point {
	return geometry.Point{
		X: (p.X - pan.X) / zoom,
		Y: (p.Y - pan.Y) / zoom,
	}
}

// ImageToScreen maps an image-space point into screen space
func ImageToScreen(p geometry.Point, zoom float64, pan geometry.Point) geometry.Point {
	return geometry.Point{
		X: p.X*zoom + pan.X,
		Y: p.Y*zoom + pan.Y,
	}
}

// ScreenToImage maps p from screen space into image space
func (t Transform) ScreenToImage(p geometry.Point) geometry.Point {
	return ScreenToImage(p, t.Zoom, t.Pan)
}

// ImageToScreen maps p from image space into screen space
func (t Transform) ImageToScreen(p geometry.Point) geometry.Point {
	return ImageToScreen(p, t.Zoom, t.Pan)
}

// ImageLength converts a screen-space length into image pixels
func (t Transform) ImageLength(screen float64) float64 {
	return screen / t.Zoom
}

// ZoomAt multiplies the zoom by factor, clamped to b, keeping the image point
// under pointer fixed on screen.
func (t Transform) ZoomAt(pointer geometry.Point, factor float64, b Bounds) Transform {
	anchor := t.ScreenToImage(pointer)
	zoom := b.Clamp(t.Zoom * factor)
	return Transform{
		Zoom: zoom,
		Pan: geometry.Point{
			X: pointer.X - anchor.X*zoom,
			Y: pointer.Y - anchor.Y*zoom,
		},
	}
}

// Wheel applies one wheel tick at pointer. A positive deltaY (scrolling down)
// zooms out by step, anything else zooms in.
func (t Transform) Wheel(pointer geometry.Point, deltaY, step float64, b Bounds) Transform {
	if step <= 1 {
		step = DefaultWheelStep
	}
	factor := step
	if deltaY > 0 {
		factor = 1 / step
	}
	return t.ZoomAt(pointer, factor, b)
}

// WithPan replaces the pan offset with the position reported at drag end
func (t Transform) WithPan(pos geometry.Point) Transform {
	return Transform{Zoom: t.Zoom, Pan: pos}
}
