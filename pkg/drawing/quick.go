package drawing

import (
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/geometry"
)

// QuickResult is the single reading produced by a QuickTool
type QuickResult struct {
	Kind  Kind
	Value float64
	Area  bool
	Text  string
}

// QuickTool is the single-shape measure tool: draw one shape, read one value.
// Lines and rectangles are press-drag-release; polygons add a point per
// press and report their enclosed area on release once they have three
// points. Points are taken as given (no view transform).
type QuickTool struct {
	tool    Kind
	scale   calibration.Scale
	points  []geometry.Point
	drawing bool
	result  QuickResult
}

// NewQuickTool creates a quick tool with the line tool selected
func NewQuickTool(scale calibration.Scale) *QuickTool {
	if !scale.Valid() {
		scale = calibration.DefaultScale
	}
	return &QuickTool{tool: Line, scale: scale}
}

// SetTool selects the tool and starts over
func (q *QuickTool) SetTool(k Kind) {
	q.tool = k
	q.Reset()
}

// Tool returns the selected tool
func (q *QuickTool) Tool() Kind {
	return q.tool
}

// Press starts a line/rectangle drag or adds a polygon vertex
func (q *QuickTool) Press(p geometry.Point) {
	if q.tool == Polygon {
		q.points = appendPoint(q.points, p)
		return
	}
	q.points = []geometry.Point{p}
	q.drawing = true
}

// Drag moves the free end of a line or rectangle
func (q *QuickTool) Drag(p geometry.Point) {
	if !q.drawing || q.tool == Polygon {
		return
	}
	q.points = []geometry.Point{q.points[0], p}
}

// Release finishes the gesture and updates the result when the shape is complete
func (q *QuickTool) Release() (QuickResult, bool) {
	q.drawing = false
	switch q.tool {
	case Line:
		if len(q.points) < 2 {
			return q.result, false
		}
		v := q.scale.Meters(geometry.Distance(q.points[0], q.points[1]))
		q.result = QuickResult{Kind: Line, Value: v, Text: FormatMeters(v)}
	case Rectangle:
		if len(q.points) < 2 {
			return q.result, false
		}
		r := geometry.RectFromCorners(q.points[0], q.points[1])
		s := float64(q.scale)
		v := r.Width * r.Height * s * s
		q.result = QuickResult{Kind: Rectangle, Value: v, Area: true, Text: FormatArea(v)}
	case Polygon:
		if len(q.points) < 3 {
			return q.result, false
		}
		s := float64(q.scale)
		v := geometry.PolygonArea(q.points) * s * s
		q.result = QuickResult{Kind: Polygon, Value: v, Area: true, Text: FormatArea(v)}
	}
	return q.result, true
}

// Points returns the current gesture points
func (q *QuickTool) Points() []geometry.Point {
	return q.points
}

// Result returns the last reading
func (q *QuickTool) Result() QuickResult {
	return q.result
}

// Reset clears the points and the reading
func (q *QuickTool) Reset() {
	q.points = nil
	q.drawing = false
	q.result = QuickResult{}
}
