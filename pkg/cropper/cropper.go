// Package cropper cuts a hand-drawn polygon out of an image. Pixels outside
// the polygon become transparent.
package cropper

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// DefaultFilename is the name suggested for a saved cut-out
const DefaultFilename = "recorte-manual.png"

// MinPoints is the smallest polygon that can be completed
const MinPoints = 3

// Session collects the polygon outline. Points are stored in image space.
// While open, clicks add points; once completed, points can only be dragged.
type Session struct {
	points   []geometry.Point
	complete bool
}

// NewSession creates an empty cropping session
func NewSession() *Session {
	return &Session{}
}

// AddPoint appends a clicked point. Clicks after completion are ignored.
func (s *Session) AddPoint(screen geometry.Point, t viewport.Transform) bool {
	if s.complete {
		return false
	}
	next := make([]geometry.Point, len(s.points), len(s.points)+1)
	copy(next, s.points)
	s.points = append(next, t.ScreenToImage(screen))
	return true
}

// Complete closes the polygon
func (s *Session) Complete() error {
	if len(s.points) < MinPoints {
		return apperrors.NewIncompleteShapeError("crop polygon", len(s.points), MinPoints)
	}
	s.complete = true
	return nil
}

// Completed reports whether the outline is closed
func (s *Session) Completed() bool {
	return s.complete
}

// MovePoint drags vertex i of a completed outline
func (s *Session) MovePoint(i int, screen geometry.Point, t viewport.Transform) bool {
	if !s.complete || i < 0 || i >= len(s.points) {
		return false
	}
	next := make([]geometry.Point, len(s.points))
	copy(next, s.points)
	next[i] = t.ScreenToImage(screen)
	s.points = next
	return true
}

// Reset clears the outline and reopens the session
func (s *Session) Reset() {
	s.points = nil
	s.complete = false
}

// Points returns a copy of the outline
func (s *Session) Points() []geometry.Point {
	out := make([]geometry.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Crop cuts the completed outline out of img
func (s *Session) Crop(img image.Image, trim bool) (*image.NRGBA, error) {
	if !s.complete {
		return nil, apperrors.NewIncompleteShapeError("crop polygon", len(s.points), MinPoints)
	}
	return Crop(img, s.points, trim)
}

// Crop returns img with everything outside the polygon made transparent.
// The result keeps the source size unless trim is set, in which case it is
// cut down to the polygon's bounding box.
func Crop(img image.Image, polygon []geometry.Point, trim bool) (*image.NRGBA, error) {
	if img == nil {
		return nil, apperrors.NewImageNotReadyError("no image to crop")
	}
	if len(polygon) < MinPoints {
		return nil, apperrors.NewIncompleteShapeError("crop polygon", len(polygon), MinPoints)
	}

	src := imaging.Clone(img)
	b := src.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))

	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(polygon[0].X), float32(polygon[0].Y))
	for _, p := range polygon[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	out := image.NewNRGBA(mask.Bounds())
	draw.DrawMask(out, out.Bounds(), src, b.Min, mask, image.Point{}, draw.Over)

	if !trim {
		return out, nil
	}
	r := geometry.Bounds(polygon)
	box := image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)),
	).Intersect(out.Bounds())
	if box.Empty() {
		return nil, apperrors.NewValidationError("crop polygon lies outside the image", nil)
	}
	return imaging.Crop(out, box), nil
}
