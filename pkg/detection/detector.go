// Package detection asks a vision model to locate the openings of a façade
// and turns them into rectangles the measurement session can use.
package detection

import (
	"context"
	"strings"

	"github.com/menta2k/facade-measure/pkg/client"
	"github.com/menta2k/facade-measure/pkg/drawing"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/types"
)

// SimpleTestPrompt checks that the model can see images at all
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the façade outline and its openings
const DefaultPrompt = `You are a building façade surveyor.

Return JSON only:
{
  "facade": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
  "openings": [
    {"label": "window", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "floors": 0,
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- "facade" tightly bounds the main building front.
- "openings" lists every window, door, balcony or garage door on that front.
- Labels: one of window, door, balcony, garage.
- If no building is visible return {"facade":{"x":0,"y":0,"w":1,"h":1},"openings":[],"floors":0,"description":"no facade"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// DefaultMinConfidence drops detections the model is unsure about
const DefaultMinConfidence = 0.3

// Known opening labels
const (
	LabelWindow  = "window"
	LabelDoor    = "door"
	LabelBalcony = "balcony"
	LabelGarage  = "garage"
)

var labelAliases = map[string]string{
	"window":      LabelWindow,
	"windows":     LabelWindow,
	"ventana":     LabelWindow,
	"door":        LabelDoor,
	"doors":       LabelDoor,
	"entrance":    LabelDoor,
	"puerta":      LabelDoor,
	"balcony":     LabelBalcony,
	"balcon":      LabelBalcony,
	"balcón":      LabelBalcony,
	"garage":      LabelGarage,
	"garage door": LabelGarage,
}

// Detector finds façade openings using a vision model
type Detector struct {
	client        client.VisionClient
	minConfidence float64
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient) *Detector {
	return &Detector{client: c, minConfidence: DefaultMinConfidence}
}

// SetMinConfidence changes the confidence cut-off
func (d *Detector) SetMinConfidence(v float64) {
	d.minConfidence = clamp(v, 0, 1)
}

// DetectOpenings analyzes a base64 image with the default prompt
func (d *Detector) DetectOpenings(ctx context.Context, model, imageB64 string) (*types.FacadeAnalysis, error) {
	return d.DetectOpeningsWithPrompt(ctx, model, imageB64, DefaultPrompt)
}

// DetectOpeningsWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectOpeningsWithPrompt(ctx context.Context, model, imageB64, prompt string) (*types.FacadeAnalysis, error) {
	result, err := d.client.AnalyzeFacade(ctx, model, prompt, imageB64)
	if err != nil {
		return nil, err
	}
	return d.validate(result), nil
}

// TestVision checks that the model can see the image
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, imageB64)
}

// validate clamps boxes into the frame, normalizes labels, and drops
// empty, unknown or low-confidence openings
func (d *Detector) validate(result *types.FacadeAnalysis) *types.FacadeAnalysis {
	result.Facade = normalizeBox(result.Facade)
	if result.Facade.Empty() {
		result.Facade = types.FullFrame
	}
	if result.Floors < 0 {
		result.Floors = 0
	}

	kept := make([]types.Opening, 0, len(result.Openings))
	for _, o := range result.Openings {
		label, ok := normalizeLabel(o.Label)
		if !ok || o.Confidence < d.minConfidence {
			continue
		}
		o.Label = label
		o.Confidence = clamp(o.Confidence, 0, 1)
		o.Box = normalizeBox(o.Box)
		if o.Box.Empty() {
			continue
		}
		kept = append(kept, o)
	}
	result.Openings = kept
	return result
}

// ToShapes converts the detection into rectangles in image pixels. The
// façade outline comes first unless it is the whole frame.
func ToShapes(result *types.FacadeAnalysis, width, height int) []drawing.Shape {
	var shapes []drawing.Shape
	if result == nil || width <= 0 || height <= 0 {
		return shapes
	}
	if result.Facade != types.FullFrame && !result.Facade.Empty() {
		shapes = append(shapes, boxShape(result.Facade, width, height))
	}
	for _, o := range result.Openings {
		shapes = append(shapes, boxShape(o.Box, width, height))
	}
	return shapes
}

func boxShape(b types.Box, width, height int) drawing.Shape {
	w, h := float64(width), float64(height)
	return drawing.Shape{
		Kind: drawing.Rectangle,
		Points: []geometry.Point{
			geometry.Pt(b.X*w, b.Y*h),
			geometry.Pt((b.X+b.W)*w, (b.Y+b.H)*h),
		},
	}
}

func normalizeLabel(label string) (string, bool) {
	l, ok := labelAliases[strings.ToLower(strings.TrimSpace(label))]
	return l, ok
}

// normalizeBox keeps the box inside the unit square, trimming what sticks out
func normalizeBox(b types.Box) types.Box {
	x0, y0 := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	x1, y1 := clamp(b.X+b.W, 0, 1), clamp(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
