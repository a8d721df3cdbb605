// Package calibration turns two reference points and a known real-world
// distance into a meters-per-pixel Scale.
//
// Reference points are stored in image space, so the resulting scale does not
// depend on the zoom level at which the user clicked.
package calibration

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// RequiredPoints is the number of reference points a calibration needs
const RequiredPoints = 2

// Scale is meters per image pixel. A valid scale is always > 0.
type Scale float64

// DefaultScale is used when measuring without calibration
const DefaultScale Scale = 1

// NewScale computes realDistance / pixelDistance
func NewScale(realDistance, pixelDistance float64) (Scale, error) {
	if !(realDistance > 0) || math.IsInf(realDistance, 0) {
		return 0, apperrors.NewInvalidDistanceError(strconv.FormatFloat(realDistance, 'g', -1, 64), nil)
	}
	if !(pixelDistance > 0) {
		return 0, apperrors.NewValidationError("reference points coincide", nil)
	}
	return Scale(realDistance / pixelDistance), nil
}

// Meters converts an image-space pixel length to meters
func (s Scale) Meters(pixels float64) float64 {
	return pixels * float64(s)
}

// Valid reports whether the scale is usable
func (s Scale) Valid() bool {
	return s > 0 && !math.IsInf(float64(s), 0)
}

// Options configures a calibration session
type Options struct {
	// NormalizeDecimalComma accepts "2,5" as 2.5
	NormalizeDecimalComma bool
	// SnapshotQuality is the JPEG quality of the reference snapshot
	SnapshotQuality int
}

// DefaultOptions returns comma normalization on and snapshot quality 95
func DefaultOptions() Options {
	return Options{
		NormalizeDecimalComma: true,
		SnapshotQuality:       95,
	}
}

// Result is what a completed calibration hands to the processing collaborator
type Result struct {
	Scale        Scale
	PixelLength  float64
	RealDistance float64
	Points       [RequiredPoints]geometry.Point
	Snapshot     []byte
	Format       string
}

// Session collects two reference points and a distance. It is single-use:
// after a successful Submit it ignores further input.
type Session struct {
	opts     Options
	points   []geometry.Point
	distance string
	done     bool
}

// NewSession creates an empty calibration session
func NewSession(opts Options) *Session {
	if opts.SnapshotQuality <= 0 || opts.SnapshotQuality > 100 {
		opts.SnapshotQuality = DefaultOptions().SnapshotQuality
	}
	return &Session{opts: opts}
}

// AddPoint records a screen-space click in image space. Clicks beyond the
// second are ignored.
func (s *Session) AddPoint(screen geometry.Point, t viewport.Transform) bool {
	if s.done || len(s.points) >= RequiredPoints {
		return false
	}
	next := make([]geometry.Point, len(s.points), RequiredPoints)
	copy(next, s.points)
	s.points = append(next, t.ScreenToImage(screen))
	return true
}

// MovePoint replaces reference point i with a dragged screen position
func (s *Session) MovePoint(i int, screen geometry.Point, t viewport.Transform) bool {
	if s.done || i < 0 || i >= len(s.points) {
		return false
	}
	next := make([]geometry.Point, len(s.points))
	copy(next, s.points)
	next[i] = t.ScreenToImage(screen)
	s.points = next
	return true
}

// SetDistance stores the typed real-world distance
func (s *Session) SetDistance(text string) {
	if s.done {
		return
	}
	s.distance = text
}

// Distance returns the typed distance text
func (s *Session) Distance() string {
	return s.distance
}

// Points returns a copy of the recorded image-space points
func (s *Session) Points() []geometry.Point {
	out := make([]geometry.Point, len(s.points))
	copy(out, s.points)
	return out
}

// Ready reports whether Submit has everything it needs to try
func (s *Session) Ready() bool {
	return !s.done && len(s.points) == RequiredPoints && strings.TrimSpace(s.distance) != ""
}

// Done reports whether the session already produced a result
func (s *Session) Done() bool {
	return s.done
}

// Reset clears the points and the distance text
func (s *Session) Reset() {
	s.points = nil
	s.distance = ""
	s.done = false
}

// Submit computes the scale and a JPEG snapshot of img. On failure the
// session is left untouched so the user can retry.
func (s *Session) Submit(img image.Image) (Result, error) {
	if s.done {
		return Result{}, apperrors.NewValidationError("calibration already completed", nil)
	}
	if img == nil {
		return Result{}, apperrors.NewImageNotReadyError("calibration image not loaded")
	}
	if len(s.points) != RequiredPoints {
		return Result{}, apperrors.NewIncompleteShapeError("calibration", len(s.points), RequiredPoints)
	}

	meters, err := ParseDistance(s.distance, s.opts.NormalizeDecimalComma)
	if err != nil {
		return Result{}, err
	}

	p0, p1 := s.points[0], s.points[1]
	pixels := geometry.Distance(p0, p1)
	scale, err := NewScale(meters, pixels)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.opts.SnapshotQuality)); err != nil {
		return Result{}, apperrors.NewProcessingError("failed to encode calibration snapshot", err)
	}

	s.done = true
	return Result{
		Scale:        scale,
		PixelLength:  pixels,
		RealDistance: meters,
		Points:       [RequiredPoints]geometry.Point{p0, p1},
		Snapshot:     buf.Bytes(),
		Format:       "jpeg",
	}, nil
}

// ParseDistance parses a positive real number, optionally accepting a comma
// as the decimal separator.
func ParseDistance(text string, normalizeComma bool) (float64, error) {
	v := strings.TrimSpace(text)
	if normalizeComma {
		v = strings.Replace(v, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.NewInvalidDistanceError(text, err)
	}
	if !(f > 0) || math.IsInf(f, 0) {
		return 0, apperrors.NewInvalidDistanceError(text, fmt.Errorf("distance must be positive"))
	}
	return f, nil
}
