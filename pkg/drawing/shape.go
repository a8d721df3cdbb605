package drawing

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/geometry"
)

// Kind is the drawing tool and the tag of a Shape
type Kind int

const (
	Line Kind = iota
	Rectangle
	Polygon
)

// Kinds lists every tool in toolbar order
func Kinds() []Kind {
	return []Kind{Line, Rectangle, Polygon}
}

func (k Kind) String() string {
	switch k {
	case Line:
		return "line"
	case Rectangle:
		return "rectangle"
	case Polygon:
		return "polygon"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MinPoints is the number of points a committed shape of this kind needs
func (k Kind) MinPoints() int {
	switch k {
	case Line, Rectangle:
		return 2
	case Polygon:
		return 3
	}
	panic(fmt.Sprintf("drawing: unknown kind %d", int(k)))
}

// ParseKind accepts the tool names used in annotation files
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "line":
		return Line, nil
	case "rectangle", "rect":
		return Rectangle, nil
	case "polygon":
		return Polygon, nil
	}
	return 0, fmt.Errorf("unknown shape kind: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Shape is a committed annotation. Points are in image space. Lines and
// rectangles have exactly two points; polygons have three or more and are
// implicitly closed.
type Shape struct {
	Kind   Kind             `json:"kind"`
	Points []geometry.Point `json:"points"`
}

// Validate checks the point count for the shape's kind
func (s Shape) Validate() error {
	need := s.Kind.MinPoints()
	have := len(s.Points)
	if have < need || (s.Kind != Polygon && have != need) {
		return apperrors.NewIncompleteShapeError(s.Kind.String(), have, need)
	}
	return nil
}

// Clone returns a deep copy
func (s Shape) Clone() Shape {
	pts := make([]geometry.Point, len(s.Points))
	copy(pts, s.Points)
	return Shape{Kind: s.Kind, Points: pts}
}

// Segments returns the drawn edges in order: one for a line, the closing
// cycle for a polygon, the four sides for a rectangle.
func (s Shape) Segments() [][2]geometry.Point {
	switch s.Kind {
	case Line:
		return [][2]geometry.Point{{s.Points[0], s.Points[1]}}
	case Rectangle:
		r := geometry.RectFromCorners(s.Points[0], s.Points[1])
		tl, br := r.Min(), r.Max()
		tr, bl := geometry.Pt(br.X, tl.Y), geometry.Pt(tl.X, br.Y)
		return [][2]geometry.Point{{tl, tr}, {tr, br}, {br, bl}, {bl, tl}}
	case Polygon:
		n := len(s.Points)
		out := make([][2]geometry.Point, n)
		for i := range s.Points {
			out[i] = [2]geometry.Point{s.Points[i], s.Points[(i+1)%n]}
		}
		return out
	}
	panic(fmt.Sprintf("drawing: unknown kind %d", int(s.Kind)))
}

// DecodeShapes reads a JSON array of shapes and validates each one
func DecodeShapes(data []byte) ([]Shape, error) {
	var shapes []Shape
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("failed to parse shapes: %w", err)
	}
	for i, s := range shapes {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
	}
	return shapes, nil
}
