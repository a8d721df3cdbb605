package drawing

import (
	"errors"
	"testing"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

func readySession() *Session {
	s := NewSession(DefaultConfig())
	s.SetImageReady(true)
	return s
}

func TestInputIgnoredBeforeImageLoads(t *testing.T) {
	s := NewSession(DefaultConfig())
	if got := s.PointerDown(geometry.Pt(1, 1)); got != Ignored {
		t.Errorf("Expected Ignored, got %v", got)
	}
	if len(s.Current()) != 0 {
		t.Error("Point buffered before image was ready")
	}
}

func TestLineCommitsOnSecondPoint(t *testing.T) {
	s := readySession()
	if got := s.PointerDown(geometry.Pt(0, 0)); got != Buffered {
		t.Fatalf("Expected Buffered, got %v", got)
	}
	if got := s.PointerDown(geometry.Pt(3, 4)); got != Committed {
		t.Fatalf("Expected Committed, got %v", got)
	}
	if len(s.Current()) != 0 {
		t.Error("Buffer not cleared after commit")
	}
	shapes := s.Shapes()
	if len(shapes) != 1 || shapes[0].Kind != Line {
		t.Fatalf("Expected one line, got %+v", shapes)
	}

	if err := s.SetScale(0.01); err != nil {
		t.Fatal(err)
	}
	m, err := s.Measurement(0)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(m.Length, 0.05, tol) {
		t.Errorf("Expected 0.05 m, got %v", m.Length)
	}
}

func TestRectangleDimensionsOrderInvariant(t *testing.T) {
	for _, pair := range [][2]geometry.Point{
		{geometry.Pt(10, 10), geometry.Pt(50, 90)},
		{geometry.Pt(50, 90), geometry.Pt(10, 10)},
	} {
		s := readySession()
		s.SetTool(Rectangle)
		s.PointerDown(pair[0])
		s.PointerDown(pair[1])
		ms := s.Measurements()
		if len(ms) != 1 {
			t.Fatalf("Expected one measurement, got %d", len(ms))
		}
		if ms[0].Width != 40 || ms[0].Height != 80 {
			t.Errorf("Expected 40x80, got %vx%v", ms[0].Width, ms[0].Height)
		}
	}
}

func TestPolygonClosing(t *testing.T) {
	s := readySession()
	s.SetTool(Polygon)

	for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(100, 0), geometry.Pt(100, 100)} {
		if got := s.PointerDown(p); got != Buffered {
			t.Fatalf("Expected Buffered for %v, got %v", p, got)
		}
	}
	if got := s.PointerDown(geometry.Pt(4, 5)); got != Committed {
		t.Fatalf("Expected closing click to commit, got %v", got)
	}
	shapes := s.Shapes()
	if len(shapes) != 1 {
		t.Fatalf("Expected one polygon, got %d", len(shapes))
	}
	if len(shapes[0].Points) != 3 {
		t.Errorf("Closing click should be excluded: got %d points", len(shapes[0].Points))
	}
	if shapes[0].Points[2] != geometry.Pt(100, 100) {
		t.Errorf("Unexpected last vertex %v", shapes[0].Points[2])
	}
}

func TestPolygonNeedsThreePointsBeforeClosing(t *testing.T) {
	s := readySession()
	s.SetTool(Polygon)

	s.PointerDown(geometry.Pt(0, 0))
	if got := s.PointerDown(geometry.Pt(0, 0)); got != Buffered {
		t.Errorf("Second point on the first must not close, got %v", got)
	}
	if got := s.PointerDown(geometry.Pt(1, 1)); got != Buffered {
		t.Errorf("Third point near the first must not close, got %v", got)
	}
	if len(s.Shapes()) != 0 {
		t.Error("Polygon committed too early")
	}
	if len(s.Current()) != 3 {
		t.Errorf("Expected 3 buffered points, got %d", len(s.Current()))
	}
}

func TestPolygonToleranceScalesWithZoom(t *testing.T) {
	s := readySession()
	s.SetTool(Polygon)
	s.ZoomAt(geometry.Pt(0, 0), 4)

	for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(400, 0), geometry.Pt(400, 400)} {
		s.PointerDown(p)
	}
	// 8 screen px away is within 10 screen px at any zoom
	if got := s.PointerDown(geometry.Pt(8, 8)); got != Committed {
		t.Fatalf("Expected commit within screen tolerance, got %v", got)
	}
	pts := s.Shapes()[0].Points
	if pts[1] != geometry.Pt(100, 0) {
		t.Errorf("Expected image-space vertex (100,0), got %v", pts[1])
	}

	s.PointerDown(geometry.Pt(0, 0))
	s.PointerDown(geometry.Pt(400, 0))
	s.PointerDown(geometry.Pt(400, 400))
	if got := s.PointerDown(geometry.Pt(12, 0)); got != Buffered {
		t.Errorf("12 screen px should be outside the tolerance, got %v", got)
	}
}

func TestPolygonEdgeMeasurements(t *testing.T) {
	s := readySession()
	if err := s.AddShape(Shape{Kind: Polygon, Points: []geometry.Point{
		geometry.Pt(0, 0), geometry.Pt(30, 0), geometry.Pt(30, 40),
	}}); err != nil {
		t.Fatal(err)
	}
	m := s.Measurements()[0]
	want := []float64{30, 40, 50}
	if len(m.Edges) != len(want) {
		t.Fatalf("Expected %d edges, got %d", len(want), len(m.Edges))
	}
	for i := range want {
		if !scalar.EqualWithinAbs(m.Edges[i], want[i], tol) {
			t.Errorf("Edge %d: expected %v, got %v", i, want[i], m.Edges[i])
		}
	}
}

func TestSwitchingToolDiscardsBuffer(t *testing.T) {
	s := readySession()
	s.SetTool(Polygon)
	s.PointerDown(geometry.Pt(0, 0))
	s.PointerDown(geometry.Pt(10, 0))

	s.SetTool(Line)
	if len(s.Current()) != 0 {
		t.Error("Buffer survived tool switch")
	}
	if len(s.Shapes()) != 0 {
		t.Error("Tool switch committed a partial shape")
	}
}

func TestMoveVertexOnlyAffectsOneShape(t *testing.T) {
	s := readySession()
	s.PointerDown(geometry.Pt(0, 0))
	s.PointerDown(geometry.Pt(10, 0))
	s.PointerDown(geometry.Pt(0, 10))
	s.PointerDown(geometry.Pt(0, 20))

	before := s.Shapes()
	if err := s.MoveVertex(0, 1, geometry.Pt(20, 0)); err != nil {
		t.Fatal(err)
	}
	after := s.Shapes()

	if before[0].Points[1] != geometry.Pt(10, 0) {
		t.Error("MoveVertex mutated a previously returned slice")
	}
	if after[0].Points[1] != geometry.Pt(20, 0) || after[0].Points[0] != geometry.Pt(0, 0) {
		t.Errorf("Unexpected moved shape %+v", after[0])
	}
	if after[1].Points[0] != geometry.Pt(0, 10) || after[1].Points[1] != geometry.Pt(0, 20) {
		t.Errorf("Other shape changed: %+v", after[1])
	}
	m, _ := s.Measurement(0)
	if !scalar.EqualWithinAbs(m.Length, 20, tol) {
		t.Errorf("Expected recomputed length 20, got %v", m.Length)
	}

	if err := s.MoveVertex(5, 0, geometry.Pt(0, 0)); err == nil {
		t.Error("Expected error for missing shape")
	}
	if err := s.MoveVertex(0, 2, geometry.Pt(0, 0)); err == nil {
		t.Error("Expected error for missing vertex")
	}
}

func TestRemoveKindAndReset(t *testing.T) {
	s := readySession()
	s.AddShape(Shape{Kind: Line, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(1, 1)}})
	s.AddShape(Shape{Kind: Rectangle, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(2, 2)}})
	s.AddShape(Shape{Kind: Line, Points: []geometry.Point{geometry.Pt(5, 5), geometry.Pt(6, 6)}})

	s.RemoveKind(Line)
	shapes := s.Shapes()
	if len(shapes) != 1 || shapes[0].Kind != Rectangle {
		t.Errorf("Expected only the rectangle to remain, got %+v", shapes)
	}

	s.PointerDown(geometry.Pt(1, 1))
	s.Reset()
	if len(s.Shapes()) != 0 || len(s.Current()) != 0 {
		t.Error("Reset did not clear the session")
	}
}

func TestAddShapeRejectsIncomplete(t *testing.T) {
	s := readySession()
	err := s.AddShape(Shape{Kind: Polygon, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(1, 1)}})
	if !errors.Is(err, apperrors.ErrIncompleteShape) {
		t.Errorf("Expected incomplete shape error, got %v", err)
	}
	err = s.AddShape(Shape{Kind: Line, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(1, 1), geometry.Pt(2, 2)}})
	if err == nil {
		t.Error("Line with three points should be rejected")
	}
	if len(s.Shapes()) != 0 {
		t.Error("Rejected shape was committed")
	}
}

func TestSetScaleRejectsInvalid(t *testing.T) {
	s := readySession()
	if err := s.SetScale(0); err == nil {
		t.Error("Expected zero scale to be rejected")
	}
	if s.Scale() != calibration.DefaultScale {
		t.Errorf("Scale changed after rejection: %v", s.Scale())
	}
}

func TestPointsStoredInImageSpace(t *testing.T) {
	s := readySession()
	s.ZoomAt(geometry.Pt(0, 0), 2)
	s.EndPan(geometry.Pt(100, 50))

	s.PointerDown(geometry.Pt(120, 70))
	s.PointerDown(geometry.Pt(160, 70))
	pts := s.Shapes()[0].Points
	if pts[0] != geometry.Pt(10, 10) || pts[1] != geometry.Pt(30, 10) {
		t.Errorf("Expected image-space points, got %v", pts)
	}
}

func TestDecodeShapes(t *testing.T) {
	data := []byte(`[
		{"kind":"line","points":[{"x":0,"y":0},{"x":3,"y":4}]},
		{"kind":"rect","points":[{"x":0,"y":0},{"x":2,"y":2}]}
	]`)
	shapes, err := DecodeShapes(data)
	if err != nil {
		t.Fatalf("DecodeShapes failed: %v", err)
	}
	if len(shapes) != 2 || shapes[1].Kind != Rectangle {
		t.Errorf("Unexpected shapes %+v", shapes)
	}

	if _, err := DecodeShapes([]byte(`[{"kind":"polygon","points":[{"x":0,"y":0}]}]`)); err == nil {
		t.Error("Expected incomplete polygon to fail")
	}
	if _, err := DecodeShapes([]byte(`[{"kind":"circle","points":[]}]`)); err == nil {
		t.Error("Expected unknown kind to fail")
	}
}

func TestMeasurementString(t *testing.T) {
	m := Measure(Shape{Kind: Rectangle, Points: []geometry.Point{geometry.Pt(0, 0), geometry.Pt(150, 75)}}, 0.01)
	if got := m.String(); got != "1.50 m x 0.75 m" {
		t.Errorf("Unexpected string %q", got)
	}
}
