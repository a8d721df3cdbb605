package drawing

import (
	"fmt"

	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/geometry"
)

// Measurement holds the real-world dimensions of one shape. Which fields are
// set depends on Kind: Length for lines, Width and Height for rectangles,
// Edges for polygons.
type Measurement struct {
	Kind   Kind      `json:"kind"`
	Length float64   `json:"length,omitempty"`
	Width  float64   `json:"width,omitempty"`
	Height float64   `json:"height,omitempty"`
	Edges  []float64 `json:"edges,omitempty"`
}

// Measure computes the dimensions of s in meters
func Measure(s Shape, scale calibration.Scale) Measurement {
	switch s.Kind {
	case Line:
		return Measurement{
			Kind:   Line,
			Length: scale.Meters(geometry.Distance(s.Points[0], s.Points[1])),
		}
	case Rectangle:
		r := geometry.RectFromCorners(s.Points[0], s.Points[1])
		return Measurement{
			Kind:   Rectangle,
			Width:  scale.Meters(r.Width),
			Height: scale.Meters(r.Height),
		}
	case Polygon:
		n := len(s.Points)
		edges := make([]float64, n)
		for i := range s.Points {
			edges[i] = scale.Meters(geometry.Distance(s.Points[i], s.Points[(i+1)%n]))
		}
		return Measurement{Kind: Polygon, Edges: edges}
	}
	panic(fmt.Sprintf("drawing: unknown kind %d", int(s.Kind)))
}

// FormatMeters formats a length the way labels show it
func FormatMeters(v float64) string {
	return fmt.Sprintf("%.2f m", v)
}

// FormatArea formats an area the way the quick tool shows it
func FormatArea(v float64) string {
	return fmt.Sprintf("Área: %.2f m²", v)
}

func (m Measurement) String() string {
	switch m.Kind {
	case Line:
		return FormatMeters(m.Length)
	case Rectangle:
		return fmt.Sprintf("%s x %s", FormatMeters(m.Width), FormatMeters(m.Height))
	case Polygon:
		out := ""
		for i, e := range m.Edges {
			if i > 0 {
				out += ", "
			}
			out += FormatMeters(e)
		}
		return out
	}
	return ""
}
