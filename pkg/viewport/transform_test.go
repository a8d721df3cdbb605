package viewport

import (
	"testing"

	"github.com/menta2k/facade-measure/pkg/geometry"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func pointsEqual(a, b geometry.Point) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) && scalar.EqualWithinAbs(a.Y, b.Y, tol)
}

func TestScreenImageRoundTrip(t *testing.T) {
	tr := Transform{Zoom: 2.5, Pan: geometry.Pt(-40, 12)}
	p := geometry.Pt(123.4, 56.7)

	img := tr.ScreenToImage(p)
	back := tr.ImageToScreen(img)
	if !pointsEqual(p, back) {
		t.Errorf("Round trip failed: %v -> %v -> %v", p, img, back)
	}

	want := geometry.Pt((123.4+40)/2.5, (56.7-12)/2.5)
	if !pointsEqual(img, want) {
		t.Errorf("ScreenToImage: expected %v, got %v", want, img)
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	b := DefaultBounds()
	tr := Transform{Zoom: 1.3, Pan: geometry.Pt(20, -15)}
	pointer := geometry.Pt(300, 200)
	anchor := tr.ScreenToImage(pointer)

	zoomed := tr.ZoomAt(pointer, 1.05, b)
	if !pointsEqual(zoomed.ScreenToImage(pointer), anchor) {
		t.Errorf("Anchor moved after zoom in: %v vs %v", zoomed.ScreenToImage(pointer), anchor)
	}

	restored := zoomed.ZoomAt(pointer, 1/1.05, b)
	if !scalar.EqualWithinAbs(restored.Zoom, tr.Zoom, tol) {
		t.Errorf("Zoom not restored: expected %v, got %v", tr.Zoom, restored.Zoom)
	}
	if !pointsEqual(restored.Pan, tr.Pan) {
		t.Errorf("Pan not restored: expected %v, got %v", tr.Pan, restored.Pan)
	}
	if !pointsEqual(restored.ScreenToImage(pointer), anchor) {
		t.Error("Anchor moved after round trip")
	}
}

func TestZoomAtRoundTripManyPointers(t *testing.T) {
	b := DefaultBounds()
	tr := Identity()
	for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(10, 900), geometry.Pt(-50, 33.3), geometry.Pt(640, 480)} {
		out := tr.ZoomAt(p, 1.5, b).ZoomAt(p, 1/1.5, b)
		if !scalar.EqualWithinAbs(out.Zoom, 1, tol) || !pointsEqual(out.Pan, tr.Pan) {
			t.Errorf("Round trip at %v gave %+v", p, out)
		}
	}
}

func TestZoomClamps(t *testing.T) {
	b := DefaultBounds()
	tr := Identity()

	in := tr.ZoomAt(geometry.Pt(10, 10), 100, b)
	if in.Zoom != DefaultMaxZoom {
		t.Errorf("Expected zoom clamped to %v, got %v", DefaultMaxZoom, in.Zoom)
	}
	out := tr.ZoomAt(geometry.Pt(10, 10), 0.001, b)
	if out.Zoom != DefaultMinZoom {
		t.Errorf("Expected zoom clamped to %v, got %v", DefaultMinZoom, out.Zoom)
	}
	// still anchored when clamped
	if !pointsEqual(in.ScreenToImage(geometry.Pt(10, 10)), geometry.Pt(10, 10)) {
		t.Error("Clamped zoom lost its anchor")
	}
}

func TestWheelIsMultiplicative(t *testing.T) {
	b := DefaultBounds()
	tr := Identity()
	p := geometry.Pt(50, 50)

	for i := 0; i < 3; i++ {
		tr = tr.Wheel(p, -1, DefaultWheelStep, b)
	}
	want := DefaultWheelStep * DefaultWheelStep * DefaultWheelStep
	if !scalar.EqualWithinAbs(tr.Zoom, want, tol) {
		t.Errorf("Expected zoom %v after three ticks, got %v", want, tr.Zoom)
	}

	for i := 0; i < 3; i++ {
		tr = tr.Wheel(p, 1, DefaultWheelStep, b)
	}
	if !scalar.EqualWithinAbs(tr.Zoom, 1, tol) || !pointsEqual(tr.Pan, geometry.Point{}) {
		t.Errorf("Expected identity after zooming back out, got %+v", tr)
	}
}

func TestWithPanReplaces(t *testing.T) {
	tr := Transform{Zoom: 2, Pan: geometry.Pt(5, 5)}
	moved := tr.WithPan(geometry.Pt(-30, 40))
	if moved.Pan != geometry.Pt(-30, 40) || moved.Zoom != 2 {
		t.Errorf("Unexpected transform after pan: %+v", moved)
	}
	if tr.Pan != geometry.Pt(5, 5) {
		t.Error("Original transform was mutated")
	}
}

func TestBoundsValidate(t *testing.T) {
	if err := DefaultBounds().Validate(); err != nil {
		t.Errorf("Default bounds should be valid: %v", err)
	}
	if err := (Bounds{Min: 0, Max: 1}).Validate(); err == nil {
		t.Error("Zero min zoom should fail")
	}
	if err := (Bounds{Min: 2, Max: 1}).Validate(); err == nil {
		t.Error("Inverted bounds should fail")
	}
}
