package render

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/drawing"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// Label offsets in screen pixels
const (
	labelAbove       = -15.0
	labelBeside      = 10.0
	rectWidthLabelDX = -20.0
	rectWidthLabelDY = -20.0
	rectHeightLabelX = -45.0
	rectHeightLabelY = -10.0
)

// Frame is everything needed to draw one view. Geometry is in image space;
// Compose converts it to screen space with Transform.
type Frame struct {
	Image       image.Image
	ShowBase    bool
	Width       int
	Height      int
	Shapes      []drawing.Shape
	Current     []geometry.Point
	Tool        drawing.Kind
	Calibration []geometry.Point
	Transform   viewport.Transform
	Scale       calibration.Scale
}

// Viewport returns the surface size: Width x Height when set, otherwise the
// image size at zoom 1.
func (f Frame) Viewport() (int, int) {
	if f.Width > 0 && f.Height > 0 {
		return f.Width, f.Height
	}
	if f.Image != nil {
		b := f.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}

// Compose maps a frame to draw commands: base image, committed shapes in
// insertion order, the in-progress preview, then calibration markers.
func Compose(f Frame, th Theme) []Command {
	var cmds []Command
	t := f.Transform
	if t.Zoom <= 0 {
		t = viewport.Identity()
	}
	scale := f.Scale
	if !scale.Valid() {
		scale = calibration.DefaultScale
	}

	if f.ShowBase && f.Image != nil {
		b := f.Image.Bounds()
		cmds = append(cmds, Command{
			Op:     OpImage,
			Layer:  LayerBase,
			Points: []geometry.Point{t.ImageToScreen(geometry.Pt(0, 0))},
			Image:  f.Image,
			Size:   geometry.Pt(float64(b.Dx())*t.Zoom, float64(b.Dy())*t.Zoom),
		})
	}

	for _, s := range f.Shapes {
		cmds = append(cmds, shapeCommands(s, t, scale, th)...)
	}

	cmds = append(cmds, previewCommands(f.Current, f.Tool, t, th)...)

	if len(f.Calibration) > 0 {
		pts := toScreen(f.Calibration, t)
		if len(pts) >= 2 {
			cmds = append(cmds, Command{Op: OpPath, Layer: LayerCalibration, Points: pts, Style: th.Calibration})
		}
		for _, p := range pts {
			cmds = append(cmds, Command{Op: OpCircle, Layer: LayerCalibration, Points: []geometry.Point{p}, Radius: th.MarkerSize, Style: th.Marker})
		}
	}
	return cmds
}

func shapeCommands(s drawing.Shape, t viewport.Transform, scale calibration.Scale, th Theme) []Command {
	m := drawing.Measure(s, scale)
	switch s.Kind {
	case drawing.Line:
		pts := toScreen(s.Points, t)
		return []Command{
			{Op: OpPath, Layer: LayerShapes, Points: pts, Style: th.Shape},
			label(drawing.FormatMeters(m.Length), LabelAnchor(pts[0], pts[1]), th),
		}
	case drawing.Rectangle:
		r := geometry.RectFromCorners(t.ImageToScreen(s.Points[0]), t.ImageToScreen(s.Points[1]))
		tl, br := r.Min(), r.Max()
		corners := []geometry.Point{tl, geometry.Pt(br.X, tl.Y), br, geometry.Pt(tl.X, br.Y)}
		return []Command{
			{Op: OpPath, Layer: LayerShapes, Points: corners, Closed: true, Style: th.Shape},
			label(drawing.FormatMeters(m.Width), geometry.Pt(r.X+r.Width/2+rectWidthLabelDX, r.Y+rectWidthLabelDY), th),
			label(drawing.FormatMeters(m.Height), geometry.Pt(r.X+rectHeightLabelX, r.Y+r.Height/2+rectHeightLabelY), th),
		}
	case drawing.Polygon:
		pts := toScreen(s.Points, t)
		cmds := []Command{{Op: OpPath, Layer: LayerShapes, Points: pts, Closed: true, Style: th.Shape}}
		for i := range pts {
			a, b := pts[i], pts[(i+1)%len(pts)]
			cmds = append(cmds, label(drawing.FormatMeters(m.Edges[i]), LabelAnchor(a, b), th))
		}
		return cmds
	}
	panic(fmt.Sprintf("render: unknown shape kind %d", int(s.Kind)))
}

func previewCommands(current []geometry.Point, tool drawing.Kind, t viewport.Transform, th Theme) []Command {
	if len(current) == 0 {
		return nil
	}
	pts := toScreen(current, t)
	var cmds []Command
	if len(pts) >= 2 {
		switch tool {
		case drawing.Rectangle:
			r := geometry.RectFromCorners(pts[0], pts[1])
			tl, br := r.Min(), r.Max()
			cmds = append(cmds, Command{Op: OpPath, Layer: LayerPreview, Closed: true, Style: th.Preview,
				Points: []geometry.Point{tl, geometry.Pt(br.X, tl.Y), br, geometry.Pt(tl.X, br.Y)}})
		case drawing.Line, drawing.Polygon:
			cmds = append(cmds, Command{Op: OpPath, Layer: LayerPreview, Points: pts, Style: th.Preview})
		}
	}
	for _, p := range pts {
		cmds = append(cmds, Command{Op: OpCircle, Layer: LayerPreview, Points: []geometry.Point{p}, Radius: th.VertexSize, Style: th.Vertex})
	}
	return cmds
}

func label(text string, at geometry.Point, th Theme) Command {
	return Command{Op: OpText, Layer: LayerShapes, Points: []geometry.Point{at}, Text: text, Style: th.Label}
}

// LabelAnchor places a segment's label near its midpoint: above for
// predominantly horizontal segments, to the right for predominantly vertical ones.
func LabelAnchor(a, b geometry.Point) geometry.Point {
	mid := geometry.Midpoint(a, b)
	if math.Abs(b.X-a.X) >= math.Abs(b.Y-a.Y) {
		return geometry.Pt(mid.X, mid.Y+labelAbove)
	}
	return geometry.Pt(mid.X+labelBeside, mid.Y)
}

func toScreen(pts []geometry.Point, t viewport.Transform) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = t.ImageToScreen(p)
	}
	return out
}
