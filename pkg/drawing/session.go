// Package drawing implements the measurement drawing session: tool selection,
// the in-progress point buffer, the committed shape collection and the
// per-shape measurements.
//
// All stored geometry is in image space. Pointer input arrives in screen
// space and is converted with the session's view transform on capture.
package drawing

import (
	"fmt"
	"math"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// DefaultCloseTolerance is the polygon closing distance in screen pixels
const DefaultCloseTolerance = 10.0

// Config holds the tunables of a drawing session
type Config struct {
	Zoom           viewport.Bounds
	WheelStep      float64
	CloseTolerance float64
}

// DefaultConfig returns the standard zoom range, a 5% wheel step and a
// 10 px closing tolerance
func DefaultConfig() Config {
	return Config{
		Zoom:           viewport.DefaultBounds(),
		WheelStep:      viewport.DefaultWheelStep,
		CloseTolerance: DefaultCloseTolerance,
	}
}

// Outcome describes what a pointer-down did
type Outcome int

const (
	// Ignored means the input was dropped (no image loaded yet)
	Ignored Outcome = iota
	// Buffered means the point was added to the in-progress buffer
	Buffered
	// Committed means a shape was appended to the collection
	Committed
)

// Session is the state of one open measurement view. It is not safe for
// concurrent use; the owning view serializes access. Every transition
// replaces the shape and buffer slices instead of mutating them, so slices
// handed out earlier never change underneath a reader.
type Session struct {
	cfg       Config
	tool      Kind
	current   []geometry.Point
	shapes    []Shape
	scale     calibration.Scale
	transform viewport.Transform
	ready     bool
}

// NewSession creates a session with the line tool selected and scale 1
func NewSession(cfg Config) *Session {
	if cfg.Zoom.Validate() != nil {
		cfg.Zoom = viewport.DefaultBounds()
	}
	if cfg.CloseTolerance <= 0 {
		cfg.CloseTolerance = DefaultCloseTolerance
	}
	if cfg.WheelStep <= 1 {
		cfg.WheelStep = viewport.DefaultWheelStep
	}
	return &Session{
		cfg:       cfg,
		tool:      Line,
		scale:     calibration.DefaultScale,
		transform: viewport.Identity(),
	}
}

// SetImageReady marks whether the reference image has finished loading.
// Pointer input is dropped until it has.
func (s *Session) SetImageReady(ready bool) {
	s.ready = ready
}

// ImageReady reports whether pointer input is accepted
func (s *Session) ImageReady() bool {
	return s.ready
}

// Tool returns the selected tool
func (s *Session) Tool() Kind {
	return s.tool
}

// SetTool selects a tool. Any in-progress buffer is discarded, never committed.
func (s *Session) SetTool(k Kind) {
	s.tool = k
	s.current = nil
}

// Scale returns the active meters-per-pixel scale
func (s *Session) Scale() calibration.Scale {
	return s.scale
}

// SetScale installs a calibrated scale
func (s *Session) SetScale(scale calibration.Scale) error {
	if !scale.Valid() {
		return apperrors.NewInvalidDistanceError(fmt.Sprint(float64(scale)), nil)
	}
	s.scale = scale
	return nil
}

// Transform returns the active view transform
func (s *Session) Transform() viewport.Transform {
	return s.transform
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.cfg
}

// Wheel zooms one tick around the pointer
func (s *Session) Wheel(pointer geometry.Point, deltaY float64) {
	s.transform = s.transform.Wheel(pointer, deltaY, s.cfg.WheelStep, s.cfg.Zoom)
}

// ZoomAt zooms by factor around the pointer
func (s *Session) ZoomAt(pointer geometry.Point, factor float64) {
	s.transform = s.transform.ZoomAt(pointer, factor, s.cfg.Zoom)
}

// EndPan replaces the pan offset with the position reported at drag end
func (s *Session) EndPan(pos geometry.Point) {
	s.transform = s.transform.WithPan(pos)
}

// PointerDown feeds one click or tap at a screen-space position
func (s *Session) PointerDown(screen geometry.Point) Outcome {
	if !s.ready {
		return Ignored
	}
	p := s.transform.ScreenToImage(screen)

	switch s.tool {
	case Line, Rectangle:
		next := appendPoint(s.current, p)
		if len(next) == 2 {
			s.commit(Shape{Kind: s.tool, Points: next})
			return Committed
		}
		s.current = next
		return Buffered
	case Polygon:
		if len(s.current) >= Polygon.MinPoints() && s.closes(p) {
			s.commit(Shape{Kind: Polygon, Points: s.current})
			return Committed
		}
		s.current = appendPoint(s.current, p)
		return Buffered
	}
	panic(fmt.Sprintf("drawing: unknown tool %d", int(s.tool)))
}

// closes reports whether p is within the closing tolerance of the first
// buffered point. The tolerance is in screen pixels, so it shrinks in image
// space as the zoom grows.
func (s *Session) closes(p geometry.Point) bool {
	tol := s.transform.ImageLength(s.cfg.CloseTolerance)
	first := s.current[0]
	return math.Abs(first.X-p.X) < tol && math.Abs(first.Y-p.Y) < tol
}

func (s *Session) commit(shape Shape) {
	next := make([]Shape, len(s.shapes), len(s.shapes)+1)
	copy(next, s.shapes)
	s.shapes = append(next, shape)
	s.current = nil
}

// AddShape commits a shape directly, bypassing pointer input. Shapes below
// their minimum point count are rejected.
func (s *Session) AddShape(shape Shape) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	s.commit(shape.Clone())
	return nil
}

// MoveVertex replaces one vertex of a committed shape with a dragged
// screen-space position. Other shapes are untouched.
func (s *Session) MoveVertex(shape, vertex int, screen geometry.Point) error {
	if shape < 0 || shape >= len(s.shapes) {
		return apperrors.NewValidationError(fmt.Sprintf("no shape %d", shape), nil)
	}
	target := s.shapes[shape]
	if vertex < 0 || vertex >= len(target.Points) {
		return apperrors.NewValidationError(fmt.Sprintf("shape %d has no vertex %d", shape, vertex), nil)
	}
	moved := target.Clone()
	moved.Points[vertex] = s.transform.ScreenToImage(screen)

	next := make([]Shape, len(s.shapes))
	copy(next, s.shapes)
	next[shape] = moved
	s.shapes = next
	return nil
}

// RemoveKind drops every committed shape of kind k
func (s *Session) RemoveKind(k Kind) {
	next := make([]Shape, 0, len(s.shapes))
	for _, sh := range s.shapes {
		if sh.Kind != k {
			next = append(next, sh)
		}
	}
	s.shapes = next
}

// Reset clears the shape collection and the in-progress buffer
func (s *Session) Reset() {
	s.shapes = nil
	s.current = nil
}

// Shapes returns the committed shapes in insertion order. The returned slice
// must not be modified.
func (s *Session) Shapes() []Shape {
	return s.shapes
}

// Current returns the in-progress buffer. The returned slice must not be modified.
func (s *Session) Current() []geometry.Point {
	return s.current
}

// Measurement recomputes the dimensions of committed shape i
func (s *Session) Measurement(i int) (Measurement, error) {
	if i < 0 || i >= len(s.shapes) {
		return Measurement{}, apperrors.NewValidationError(fmt.Sprintf("no shape %d", i), nil)
	}
	return Measure(s.shapes[i], s.scale), nil
}

// Measurements returns the dimensions of every committed shape
func (s *Session) Measurements() []Measurement {
	out := make([]Measurement, len(s.shapes))
	for i, sh := range s.shapes {
		out[i] = Measure(sh, s.scale)
	}
	return out
}

func appendPoint(pts []geometry.Point, p geometry.Point) []geometry.Point {
	next := make([]geometry.Point, len(pts), len(pts)+1)
	copy(next, pts)
	return append(next, p)
}
