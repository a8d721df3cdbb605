package render

import (
	"fmt"
	"image"
	"sync"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/processing"
)

// ExportMode selects which layers end up in an export
type ExportMode int

const (
	// ExportWithImage flattens the base image and the overlay
	ExportWithImage ExportMode = iota
	// ExportShapesOnly hides the base image for the duration of the export
	ExportShapesOnly
)

func (m ExportMode) String() string {
	switch m {
	case ExportWithImage:
		return "with-image"
	case ExportShapesOnly:
		return "shapes-only"
	}
	return "unknown"
}

// FrameSource produces the current frame. It is called with the surface lock
// held and must not call back into the surface.
type FrameSource func() Frame

// Surface is the drawable target of one view. Redraw and Export are
// serialized so an export never observes a half-toggled base layer.
type Surface struct {
	mu          sync.Mutex
	source      FrameSource
	theme       Theme
	raster      *Rasterizer
	screen      *Rasterizer
	baseVisible bool
}

// NewSurface creates a surface that exports at pixelRatio
func NewSurface(source FrameSource, theme Theme, pixelRatio float64) *Surface {
	if pixelRatio <= 0 {
		pixelRatio = DefaultPixelRatio
	}
	return &Surface{
		source:      source,
		theme:       theme,
		raster:      NewRasterizer(pixelRatio),
		screen:      NewRasterizer(1),
		baseVisible: true,
	}
}

// BaseVisible reports whether the base image layer is drawn
func (s *Surface) BaseVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseVisible
}

// SetBaseVisible shows or hides the base image layer
func (s *Surface) SetBaseVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseVisible = v
}

// Commands composes the current frame without rasterizing it
func (s *Surface) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Compose(s.frame(), s.theme)
}

// Redraw rasterizes the current frame at screen density
func (s *Surface) Redraw() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.frame()
	w, h := f.Viewport()
	return s.screen.Render(Compose(f, s.theme), w, h)
}

// Export rasterizes the current frame at the export pixel ratio and encodes
// it. In ExportShapesOnly mode the base layer is hidden while rendering and
// is visible again on return, including when encoding fails.
func (s *Surface) Export(mode ExportMode, opts processing.EncodeOptions) (data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ExportShapesOnly {
		prev := s.baseVisible
		s.baseVisible = false
		defer func() { s.baseVisible = prev }()
	}
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = apperrors.NewExportError(fmt.Sprintf("render panicked: %v", r), nil)
		}
	}()

	f := s.frame()
	w, h := f.Viewport()
	if w <= 0 || h <= 0 {
		return nil, apperrors.NewExportError("nothing to export", nil)
	}
	img := s.raster.Render(Compose(f, s.theme), w, h)

	if opts.Format == "" {
		opts.Format = processing.FormatPNG
	}
	data, err = processing.EncodeBytes(img, opts)
	if err != nil {
		return nil, apperrors.NewExportError(fmt.Sprintf("encode %s", opts.Format), err)
	}
	return data, nil
}

func (s *Surface) frame() Frame {
	var f Frame
	if s.source != nil {
		f = s.source()
	}
	f.ShowBase = s.baseVisible && f.Image != nil
	return f
}
