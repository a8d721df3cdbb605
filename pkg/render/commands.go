// Package render turns a measurement frame into an ordered list of draw
// commands and executes them onto a raster surface for display and export.
//
// Compose is pure and knows nothing about pixels; Rasterizer is the only
// code that touches an image buffer.
package render

import (
	"image"
	"image/color"

	"github.com/menta2k/facade-measure/pkg/geometry"
)

// Layer groups commands in drawing order
type Layer int

const (
	LayerBase Layer = iota
	LayerShapes
	LayerPreview
	LayerCalibration
)

func (l Layer) String() string {
	switch l {
	case LayerBase:
		return "base"
	case LayerShapes:
		return "shapes"
	case LayerPreview:
		return "preview"
	case LayerCalibration:
		return "calibration"
	}
	return "unknown"
}

// Op is the kind of a draw command
type Op int

const (
	// OpImage draws Image with its top-left at Points[0], scaled to Size
	OpImage Op = iota
	// OpPath strokes the polyline through Points, closing it when Closed
	OpPath
	// OpCircle fills a circle of Radius centred on Points[0]
	OpCircle
	// OpText draws Text with its top-left at Points[0]
	OpText
)

func (o Op) String() string {
	switch o {
	case OpImage:
		return "image"
	case OpPath:
		return "path"
	case OpCircle:
		return "circle"
	case OpText:
		return "text"
	}
	return "unknown"
}

// Style is the paint of a command
type Style struct {
	Stroke   color.NRGBA
	Fill     color.NRGBA
	Width    float64
	FontSize float64
}

// Command is one screen-space drawing instruction
type Command struct {
	Op     Op
	Layer  Layer
	Points []geometry.Point
	Closed bool
	Radius float64
	Text   string
	Image  image.Image
	Size   geometry.Point
	Style  Style
}

// Theme holds the paints used by Compose
type Theme struct {
	Shape       Style
	Label       Style
	Preview     Style
	Vertex      Style
	Calibration Style
	Marker      Style
	MarkerSize  float64
	VertexSize  float64
}

// DefaultTheme matches the measurement overlay colours: blue shapes, white
// labels outlined in blue, a red calibration line with blue markers.
func DefaultTheme() Theme {
	blue := color.NRGBA{0x25, 0x63, 0xEB, 0xFF}
	return Theme{
		Shape:       Style{Stroke: blue, Width: 2},
		Label:       Style{Fill: color.NRGBA{255, 255, 255, 255}, Stroke: color.NRGBA{0, 0, 255, 255}, Width: 2, FontSize: 16},
		Preview:     Style{Stroke: color.NRGBA{255, 140, 0, 255}, Width: 2},
		Vertex:      Style{Fill: color.NRGBA{255, 140, 0, 255}},
		Calibration: Style{Stroke: color.NRGBA{255, 0, 0, 255}, Width: 1},
		Marker:      Style{Fill: color.NRGBA{0, 0, 255, 255}},
		MarkerSize:  4,
		VertexSize:  3,
	}
}
