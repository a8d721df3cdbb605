// Package facademeasure measures building façades on a photograph.
//
// A View holds one reference image and lets the user calibrate a
// meters-per-pixel scale from two points and a known distance, draw lines,
// rectangles and polygons whose real-world dimensions are labelled on an
// overlay, and export that overlay as an image.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		facademeasure "github.com/menta2k/facade-measure"
//		"github.com/menta2k/facade-measure/pkg/drawing"
//		"github.com/menta2k/facade-measure/pkg/geometry"
//		"github.com/menta2k/facade-measure/pkg/processing"
//		"github.com/menta2k/facade-measure/pkg/render"
//	)
//
//	func main() {
//		view := facademeasure.New(facademeasure.DefaultOptions())
//		defer view.Close()
//
//		if err := <-view.LoadAsync(context.Background(), "facade.jpg"); err != nil {
//			log.Fatal(err)
//		}
//
//		// Calibrate: a 2.5 m door spans two clicks
//		view.SetMode(facademeasure.ModeCalibrate)
//		view.PointerDown(geometry.Pt(120, 400))
//		view.PointerDown(geometry.Pt(120, 650))
//		view.SetCalibrationDistance("2,5")
//		if _, err := view.SubmitCalibration(); err != nil {
//			log.Fatal(err)
//		}
//
//		// Measure a window
//		view.SetTool(drawing.Rectangle)
//		view.PointerDown(geometry.Pt(300, 200))
//		view.PointerDown(geometry.Pt(420, 360))
//
//		png, err := view.Export(render.ExportWithImage, processing.EncodeOptions{})
//		if err != nil {
//			log.Fatal(err)
//		}
//		os.WriteFile("facade_measured.png", png, 0644)
//	}
//
// The package consists of these components:
//
//  1. Viewport (pkg/viewport): screen/image coordinate transform, zoom and pan
//  2. Calibration (pkg/calibration): two-point scale calibration
//  3. Drawing (pkg/drawing): the shape drawing state machine and measurements
//  4. Render (pkg/render): overlay composition, rasterization and export
//  5. Processing (pkg/processing): image loading and encoding
//  6. Backend (pkg/backend): the remote processing service client
//  7. Detection (pkg/detection): vision-model detection of façade openings
package facademeasure

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/drawing"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/processing"
	"github.com/menta2k/facade-measure/pkg/render"
)

// Version of the façade measurement library
const Version = "1.0.0"

// Mode selects what pointer input does
type Mode int

const (
	// ModeMeasure feeds clicks to the drawing session
	ModeMeasure Mode = iota
	// ModeCalibrate feeds clicks to the calibration session
	ModeCalibrate
)

func (m Mode) String() string {
	switch m {
	case ModeMeasure:
		return "measure"
	case ModeCalibrate:
		return "calibrate"
	}
	return "unknown"
}

// Options configures a View
type Options struct {
	Drawing     drawing.Config
	Calibration calibration.Options
	Theme       render.Theme
	PixelRatio  float64
	// Width and Height fix the viewport size; zero means the image size
	Width  int
	Height int
	// Scale, when valid, is installed instead of the default 1 m/px
	Scale     calibration.Scale
	Processor *processing.Processor
	// OnCalibrated is called after a successful calibration, outside the
	// view lock
	OnCalibrated func(calibration.Result)
}

// DefaultOptions returns the standard measurement settings
func DefaultOptions() Options {
	return Options{
		Drawing:     drawing.DefaultConfig(),
		Calibration: calibration.DefaultOptions(),
		Theme:       render.DefaultTheme(),
		PixelRatio:  render.DefaultPixelRatio,
	}
}

// View is one open measurement view. All methods are safe for concurrent
// use. The reference image is never modified.
type View struct {
	mu      sync.Mutex
	opts    Options
	proc    *processing.Processor
	img     image.Image
	draw    *drawing.Session
	calib   *calibration.Session
	surface *render.Surface
	mode    Mode
	closed  bool

	loadSeq    int
	cancelLoad context.CancelFunc
	log        *logrus.Entry
}

// New creates a view with no image loaded
func New(opts Options) *View {
	proc := opts.Processor
	if proc == nil {
		proc = processing.NewProcessor()
	}
	v := &View{
		opts:  opts,
		proc:  proc,
		draw:  drawing.NewSession(opts.Drawing),
		calib: calibration.NewSession(opts.Calibration),
		log:   logger.WithField("component", "view"),
	}
	if opts.Scale.Valid() {
		v.draw.SetScale(opts.Scale)
	}
	v.surface = render.NewSurface(v.frame, opts.Theme, opts.PixelRatio)
	return v
}

// SetImage installs a decoded image, replacing any previous one along with
// its shapes and calibration
func (v *View) SetImage(img image.Image) error {
	if img == nil {
		return apperrors.NewImageNotReadyError("nil image")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return apperrors.NewValidationError("view is closed", nil)
	}
	v.loadSeq++
	if v.cancelLoad != nil {
		v.cancelLoad()
		v.cancelLoad = nil
	}
	v.install(img)
	return nil
}

// LoadAsync decodes source (a path or http(s) URL) in the background. The
// returned channel receives nil once the image is installed, or the load
// error, and is then closed. Pointer input is dropped until then. A later
// load or Close supersedes an earlier one.
func (v *View) LoadAsync(ctx context.Context, source string) <-chan error {
	done := make(chan error, 1)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		done <- apperrors.NewValidationError("view is closed", nil)
		close(done)
		return done
	}
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancelLoad = cancel
	v.loadSeq++
	seq := v.loadSeq
	v.mu.Unlock()

	results := v.proc.LoadAsync(ctx, source)
	go func() {
		defer close(done)
		defer cancel()

		res := <-results
		if res.Err != nil {
			v.log.WithError(res.Err).WithField("source", source).Warn("Image load failed")
			done <- fmt.Errorf("failed to load %s: %w", source, res.Err)
			return
		}

		v.mu.Lock()
		if v.closed || seq != v.loadSeq {
			v.mu.Unlock()
			done <- context.Canceled
			return
		}
		v.install(res.Image)
		v.cancelLoad = nil
		v.mu.Unlock()

		info := v.proc.GetImageInfo(res.Image)
		v.log.WithFields(logrus.Fields{"source": source, "width": info.Width, "height": info.Height, "aspect": info.AspectRatio}).Debug("Image loaded")
		done <- nil
	}()
	return done
}

// install resets both sessions around a new image. Caller holds v.mu.
func (v *View) install(img image.Image) {
	v.img = img
	v.draw = drawing.NewSession(v.opts.Drawing)
	if v.opts.Scale.Valid() {
		v.draw.SetScale(v.opts.Scale)
	}
	v.draw.SetImageReady(true)
	v.calib = calibration.NewSession(v.opts.Calibration)
	v.mode = ModeMeasure
}

// Image returns the reference image, or nil before it has loaded
func (v *View) Image() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.img
}

// Ready reports whether an image is loaded and input is accepted
func (v *View) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && v.img != nil
}

// Mode returns the input mode
func (v *View) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// SetMode switches the input mode. Entering calibration after a completed
// one starts a fresh calibration; the drawing buffer is discarded.
func (v *View) SetMode(m Mode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m == ModeCalibrate && v.calib.Done() {
		v.calib = calibration.NewSession(v.opts.Calibration)
	}
	v.draw.SetTool(v.draw.Tool())
	v.mode = m
}

// Tool returns the selected drawing tool
func (v *View) Tool() drawing.Kind {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.Tool()
}

// SetTool selects a drawing tool, discarding any in-progress shape
func (v *View) SetTool(k drawing.Kind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.SetTool(k)
}

// PointerDown routes a screen-space click to the active session. Clicks
// before the image has loaded are dropped and reported as Ignored.
func (v *View) PointerDown(screen geometry.Point) drawing.Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.img == nil {
		return drawing.Ignored
	}
	if v.mode == ModeCalibrate {
		if v.calib.AddPoint(screen, v.draw.Transform()) {
			return drawing.Buffered
		}
		return drawing.Ignored
	}
	return v.draw.PointerDown(screen)
}

// Wheel zooms one wheel tick around the pointer
func (v *View) Wheel(pointer geometry.Point, deltaY float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.Wheel(pointer, deltaY)
}

// ZoomAt zooms by factor around the pointer
func (v *View) ZoomAt(pointer geometry.Point, factor float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.ZoomAt(pointer, factor)
}

// EndPan sets the pan offset reported at the end of a drag
func (v *View) EndPan(pos geometry.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.EndPan(pos)
}

// MoveVertex drags one vertex of a committed shape
func (v *View) MoveVertex(shape, vertex int, screen geometry.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.MoveVertex(shape, vertex, screen)
}

// MoveCalibrationPoint drags calibration reference point i
func (v *View) MoveCalibrationPoint(i int, screen geometry.Point) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calib.MovePoint(i, screen, v.draw.Transform())
}

// SetCalibrationDistance stores the typed real-world distance
func (v *View) SetCalibrationDistance(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calib.SetDistance(text)
}

// CalibrationPoints returns the image-space reference points
func (v *View) CalibrationPoints() []geometry.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calib.Points()
}

// ResetCalibration clears the reference points and distance
func (v *View) ResetCalibration() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calib.Reset()
}

// SubmitCalibration computes the scale from the reference points and
// distance, installs it and returns to measure mode. On failure nothing
// changes and the points are kept for a retry.
func (v *View) SubmitCalibration() (calibration.Result, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return calibration.Result{}, apperrors.NewValidationError("view is closed", nil)
	}
	res, err := v.calib.Submit(v.img)
	if err == nil {
		err = v.draw.SetScale(res.Scale)
	}
	if err != nil {
		v.mu.Unlock()
		return calibration.Result{}, err
	}
	v.mode = ModeMeasure
	hook := v.opts.OnCalibrated
	v.mu.Unlock()

	v.log.WithFields(logrus.Fields{
		"scale":    float64(res.Scale),
		"pixels":   res.PixelLength,
		"distance": res.RealDistance,
	}).Info("Calibration complete")
	if hook != nil {
		hook(res)
	}
	return res, nil
}

// Scale returns the active meters-per-pixel scale
func (v *View) Scale() calibration.Scale {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.Scale()
}

// SetScale installs a known scale without calibrating
func (v *View) SetScale(s calibration.Scale) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.SetScale(s)
}

// AddShapes commits shapes produced elsewhere, such as by detection. Either
// all are added or none.
func (v *View) AddShapes(shapes []drawing.Shape) error {
	for _, s := range shapes {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range shapes {
		v.draw.AddShape(s)
	}
	return nil
}

// Shapes returns the committed shapes in insertion order
func (v *View) Shapes() []drawing.Shape {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.Shapes()
}

// Current returns the in-progress points
func (v *View) Current() []geometry.Point {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.Current()
}

// Measurements returns the real-world dimensions of every committed shape
func (v *View) Measurements() []drawing.Measurement {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draw.Measurements()
}

// RemoveKind deletes every committed shape of kind k
func (v *View) RemoveKind(k drawing.Kind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.RemoveKind(k)
}

// Reset deletes every committed shape and the in-progress buffer
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draw.Reset()
}

// SetBaseVisible shows or hides the reference image under the overlay
func (v *View) SetBaseVisible(visible bool) {
	v.surface.SetBaseVisible(visible)
}

// BaseVisible reports whether the reference image is drawn
func (v *View) BaseVisible() bool {
	return v.surface.BaseVisible()
}

// Redraw rasterizes the current view at screen density
func (v *View) Redraw() *image.NRGBA {
	return v.surface.Redraw()
}

// Commands returns the draw commands of the current view
func (v *View) Commands() []render.Command {
	return v.surface.Commands()
}

// Export renders the view at the export pixel ratio and encodes it
func (v *View) Export(mode render.ExportMode, opts processing.EncodeOptions) ([]byte, error) {
	if !v.Ready() {
		return nil, apperrors.NewImageNotReadyError("nothing to export before the image has loaded")
	}
	data, err := v.surface.Export(mode, opts)
	if err != nil {
		v.log.WithError(err).WithField("mode", mode.String()).Error("Export failed")
		return nil, err
	}
	v.log.WithFields(logrus.Fields{"mode": mode.String(), "bytes": len(data)}).Debug("Exported overlay")
	return data, nil
}

// Close cancels any pending load and discards the session state. The view
// ignores input afterwards.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancelLoad != nil {
		v.cancelLoad()
		v.cancelLoad = nil
	}
	v.closed = true
	v.img = nil
	v.draw = drawing.NewSession(v.opts.Drawing)
	v.calib = calibration.NewSession(v.opts.Calibration)
}

// frame snapshots the view for the surface. It runs with the surface lock
// held, so the lock order is surface then view.
func (v *View) frame() render.Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	f := render.Frame{
		Image:     v.img,
		Width:     v.opts.Width,
		Height:    v.opts.Height,
		Shapes:    v.draw.Shapes(),
		Current:   v.draw.Current(),
		Tool:      v.draw.Tool(),
		Transform: v.draw.Transform(),
		Scale:     v.draw.Scale(),
	}
	if v.mode == ModeCalibrate {
		f.Calibration = v.calib.Points()
	}
	return f
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
