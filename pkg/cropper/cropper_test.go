package cropper

import (
	"errors"
	"image"
	"image/color"
	"testing"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// createTestImage creates an opaque grey test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{64, 64, 64, 255})
		}
	}
	return img
}

func square(s *Session, t viewport.Transform) {
	for _, p := range []geometry.Point{geometry.Pt(10, 10), geometry.Pt(30, 10), geometry.Pt(30, 30), geometry.Pt(10, 30)} {
		s.AddPoint(p, t)
	}
}

func TestCompleteNeedsThreePoints(t *testing.T) {
	s := NewSession()
	s.AddPoint(geometry.Pt(0, 0), viewport.Identity())
	s.AddPoint(geometry.Pt(5, 0), viewport.Identity())
	if err := s.Complete(); !errors.Is(err, apperrors.ErrIncompleteShape) {
		t.Errorf("Expected IncompleteShape, got %v", err)
	}
	if s.Completed() {
		t.Error("Session completed with two points")
	}
	s.AddPoint(geometry.Pt(5, 5), viewport.Identity())
	if err := s.Complete(); err != nil {
		t.Fatal(err)
	}
	if s.AddPoint(geometry.Pt(9, 9), viewport.Identity()) {
		t.Error("Points added after completion")
	}
	if len(s.Points()) != 3 {
		t.Errorf("Expected 3 points, got %d", len(s.Points()))
	}
}

func TestMovePointOnlyWhenComplete(t *testing.T) {
	s := NewSession()
	id := viewport.Identity()
	square(s, id)
	if s.MovePoint(0, geometry.Pt(0, 0), id) {
		t.Error("Dragged a point before completion")
	}
	if err := s.Complete(); err != nil {
		t.Fatal(err)
	}
	zoomed := viewport.Transform{Zoom: 2}
	if !s.MovePoint(0, geometry.Pt(4, 6), zoomed) {
		t.Fatal("Drag rejected")
	}
	if got := s.Points()[0]; got != geometry.Pt(2, 3) {
		t.Errorf("Expected image-space (2,3), got %v", got)
	}
	if s.MovePoint(7, geometry.Pt(0, 0), id) {
		t.Error("Out-of-range vertex accepted")
	}

	s.Reset()
	if s.Completed() || len(s.Points()) != 0 {
		t.Error("Reset did not reopen the session")
	}
}

func TestCropMasksOutside(t *testing.T) {
	s := NewSession()
	square(s, viewport.Identity())
	if err := s.Complete(); err != nil {
		t.Fatal(err)
	}
	out, err := s.Crop(createTestImage(40, 40), false)
	if err != nil {
		t.Fatal(err)
	}
	if b := out.Bounds(); b.Dx() != 40 || b.Dy() != 40 {
		t.Errorf("Expected 40x40, got %dx%d", b.Dx(), b.Dy())
	}
	if got := out.NRGBAAt(20, 20); got.A != 255 || got.R != 64 {
		t.Errorf("Inside pixel altered: %v", got)
	}
	if got := out.NRGBAAt(2, 2); got.A != 0 {
		t.Errorf("Outside pixel not transparent: %v", got)
	}
}

func TestCropTrim(t *testing.T) {
	poly := []geometry.Point{geometry.Pt(10, 10), geometry.Pt(30, 10), geometry.Pt(30, 30), geometry.Pt(10, 30)}
	out, err := Crop(createTestImage(40, 40), poly, true)
	if err != nil {
		t.Fatal(err)
	}
	if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("Expected 20x20, got %dx%d", b.Dx(), b.Dy())
	}

	outside := []geometry.Point{geometry.Pt(100, 100), geometry.Pt(120, 100), geometry.Pt(120, 120)}
	if _, err := Crop(createTestImage(40, 40), outside, true); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestCropErrors(t *testing.T) {
	if _, err := Crop(nil, nil, false); !errors.Is(err, apperrors.ErrImageNotReady) {
		t.Errorf("Expected ImageNotReady, got %v", err)
	}
	if _, err := NewSession().Crop(createTestImage(4, 4), false); !errors.Is(err, apperrors.ErrIncompleteShape) {
		t.Errorf("Expected IncompleteShape, got %v", err)
	}
}

func BenchmarkCrop(b *testing.B) {
	img := createTestImage(800, 600)
	poly := []geometry.Point{geometry.Pt(100, 100), geometry.Pt(700, 120), geometry.Pt(650, 500), geometry.Pt(80, 480)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Crop(img, poly, true)
	}
}
