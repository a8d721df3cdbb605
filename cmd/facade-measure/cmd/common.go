package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	facademeasure "github.com/menta2k/facade-measure"
	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/internal/utils"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/drawing"
	"github.com/menta2k/facade-measure/pkg/geometry"
	"github.com/menta2k/facade-measure/pkg/processing"
	"github.com/menta2k/facade-measure/pkg/render"
	"github.com/spf13/cobra"
)

// Shared flags of the commands that draw an overlay
var (
	scaleFlag  float64
	p1Flag     string
	p2Flag     string
	distance   string
	shapesOnly bool
	formatFlag string
	jsonOutput bool
	pixelRatio float64
)

func addOverlayFlags(c *cobra.Command) {
	c.Flags().Float64Var(&scaleFlag, "scale", 0, "known scale in meters per image pixel")
	c.Flags().StringVar(&p1Flag, "p1", "", "first calibration point x,y in image pixels")
	c.Flags().StringVar(&p2Flag, "p2", "", "second calibration point x,y in image pixels")
	c.Flags().StringVar(&distance, "distance", "", "real distance between --p1 and --p2 in meters (\"2,5\" accepted)")
	c.Flags().BoolVar(&shapesOnly, "shapes-only", false, "export the overlay without the photograph")
	c.Flags().StringVar(&formatFlag, "format", "", "output format: png|jpeg|webp (default from config)")
	c.Flags().BoolVar(&jsonOutput, "json", false, "print measurements as JSON")
	c.Flags().Float64Var(&pixelRatio, "pixel-ratio", 0, "export pixel ratio (default from config)")
}

func viewOptions() facademeasure.Options {
	opts := facademeasure.DefaultOptions()
	opts.Drawing = cfg.Drawing()
	opts.Calibration = cfg.CalibrationOptions()
	opts.PixelRatio = cfg.Export.PixelRatio
	if pixelRatio > 0 {
		opts.PixelRatio = pixelRatio
	}
	return opts
}

// parsePoint reads "x,y"
func parsePoint(s string) (geometry.Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return geometry.Point{}, fmt.Errorf("invalid point %q (want x,y)", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geometry.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return geometry.Pt(x, y), nil
}

// parsePoints reads points separated by spaces or semicolons
func parsePoints(s string) ([]geometry.Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ';' })
	pts := make([]geometry.Point, 0, len(fields))
	for _, f := range fields {
		p, err := parsePoint(f)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// openView loads source into a new view and applies --scale or the
// --p1/--p2/--distance calibration
func openView(ctx context.Context, source string, opts facademeasure.Options) (*facademeasure.View, error) {
	view := facademeasure.New(opts)
	if err := <-view.LoadAsync(ctx, source); err != nil {
		view.Close()
		return nil, err
	}
	if scaleFlag > 0 {
		if err := view.SetScale(calibration.Scale(scaleFlag)); err != nil {
			view.Close()
			return nil, err
		}
	}
	if p1Flag != "" || p2Flag != "" || distance != "" {
		if _, err := calibrate(view); err != nil {
			view.Close()
			return nil, err
		}
	}
	return view, nil
}

// calibrate replays the two reference clicks at zoom 1
func calibrate(view *facademeasure.View) (calibration.Result, error) {
	p1, err := parsePoint(p1Flag)
	if err != nil {
		return calibration.Result{}, fmt.Errorf("--p1: %w", err)
	}
	p2, err := parsePoint(p2Flag)
	if err != nil {
		return calibration.Result{}, fmt.Errorf("--p2: %w", err)
	}
	view.SetMode(facademeasure.ModeCalibrate)
	view.PointerDown(p1)
	view.PointerDown(p2)
	view.SetCalibrationDistance(distance)
	return view.SubmitCalibration()
}

func encodeOptions() (processing.EncodeOptions, error) {
	opts := cfg.EncodeOptions()
	if formatFlag != "" {
		f, err := processing.ParseFormat(formatFlag)
		if err != nil {
			return opts, err
		}
		opts.Format = f
	}
	return opts, nil
}

// exportOverlay writes the view to <out>/<name>_measured.<ext>
func exportOverlay(view *facademeasure.View, input string) (string, error) {
	opts, err := encodeOptions()
	if err != nil {
		return "", err
	}
	mode := render.ExportWithImage
	if shapesOnly {
		mode = render.ExportShapesOnly
	}
	data, err := view.Export(mode, opts)
	if err != nil {
		return "", err
	}
	path := utils.OutputFilename(input, outDir, cfg.Output.Prefix, cfg.Output.Suffix, opts.Format.Extension())
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.WithField("path", path).WithField("size", utils.FormatFileSize(int64(len(data)))).Info("Wrote file")
	return nil
}

type shapeReport struct {
	Index       int                 `json:"index"`
	Shape       drawing.Shape       `json:"shape"`
	Measurement drawing.Measurement `json:"measurement"`
}

type measurementReport struct {
	Scale  float64       `json:"scale_m_per_px"`
	Output string        `json:"output,omitempty"`
	Shapes []shapeReport `json:"shapes"`
}

func printMeasurements(view *facademeasure.View, output string) error {
	shapes := view.Shapes()
	ms := view.Measurements()
	report := measurementReport{Scale: float64(view.Scale()), Output: output}
	for i := range shapes {
		report.Shapes = append(report.Shapes, shapeReport{Index: i, Shape: shapes[i], Measurement: ms[i]})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Scale: %.6f m/px\n", report.Scale)
	for _, r := range report.Shapes {
		fmt.Printf("  #%d %-9s %s\n", r.Index, r.Shape.Kind, r.Measurement)
	}
	if output != "" {
		fmt.Printf("Overlay: %s\n", output)
	}
	return nil
}
