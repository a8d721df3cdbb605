package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	facademeasure "github.com/menta2k/facade-measure"
	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/pkg/backend"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/processing"
)

var submitCalibration bool

var calibrateCmd = &cobra.Command{
	Use:   "calibrate IMAGE",
	Short: "Compute the meters-per-pixel scale from two reference points",
	Long: `Calibrate the scale of a photograph from two points (image pixels) and the
real distance between them. With --submit the calibration snapshot is sent
to the processing service, which returns the measurement overlays.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().StringVar(&p1Flag, "p1", "", "first reference point x,y in image pixels")
	calibrateCmd.Flags().StringVar(&p2Flag, "p2", "", "second reference point x,y in image pixels")
	calibrateCmd.Flags().StringVar(&distance, "distance", "", "real distance in meters (\"2,5\" accepted)")
	calibrateCmd.Flags().BoolVar(&submitCalibration, "submit", false, "send the calibration to the processing service")
	calibrateCmd.MarkFlagRequired("p1")
	calibrateCmd.MarkFlagRequired("p2")
	calibrateCmd.MarkFlagRequired("distance")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	input := args[0]

	var tracker *backend.Tracker
	if submitCalibration {
		client, err := backend.NewClient(cfg.BackendClient())
		if err != nil {
			return err
		}
		tracker = backend.NewTracker(client)
	}

	opts := viewOptions()
	var submitErr error
	opts.OnCalibrated = func(res calibration.Result) {
		if tracker != nil {
			submitErr = tracker.SubmitCalibration(ctx, res)
		}
	}

	view := facademeasure.New(opts)
	defer view.Close()
	if err := <-view.LoadAsync(ctx, input); err != nil {
		return err
	}
	res, err := calibrate(view)
	if err != nil {
		return err
	}
	fmt.Printf("Scale: %.6f m/px (%.2f px = %.3f m)\n", float64(res.Scale), res.PixelLength, res.RealDistance)

	if tracker == nil {
		return nil
	}
	if submitErr != nil {
		return submitErr
	}
	tracker.Wait()

	var failed int
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	for _, action := range backend.MeasurementActions() {
		st := tracker.Status(action)
		if st.Err != "" {
			failed++
			fmt.Printf("  %-24s failed: %s\n", action, st.Err)
			continue
		}
		if st.Result == nil {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.%s", base, action, extensionFor(st.Result.ContentType)))
		if err := writeFile(path, st.Result.Data); err != nil {
			return err
		}
		fmt.Printf("  %-24s %s\n", action, path)
	}
	if failed > 0 {
		logger.WithField("failed", failed).Warn("Some measurement requests failed")
		return fmt.Errorf("%d of %d measurement requests failed", failed, len(backend.MeasurementActions()))
	}
	return nil
}

// extensionFor maps a response content type to a file extension
func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return processing.FormatJPEG.Extension()
	case strings.Contains(contentType, "webp"):
		return processing.FormatWebP.Extension()
	default:
		return processing.FormatPNG.Extension()
	}
}
