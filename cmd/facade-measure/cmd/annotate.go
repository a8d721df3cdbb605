package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/facade-measure/pkg/drawing"
)

var shapesFile string

var annotateCmd = &cobra.Command{
	Use:   "annotate IMAGE",
	Short: "Draw measured shapes over a photograph and export the overlay",
	Long: `Annotate reads a JSON array of shapes in image pixels, for example

  [{"kind":"line","points":[{"x":10,"y":10},{"x":210,"y":10}]},
   {"kind":"rectangle","points":[{"x":50,"y":60},{"x":150,"y":260}]}]

labels every edge with its length in meters and writes the overlay.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

func init() {
	annotateCmd.Flags().StringVar(&shapesFile, "shapes", "", "JSON file with the shapes to draw")
	annotateCmd.MarkFlagRequired("shapes")
	addOverlayFlags(annotateCmd)
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(shapesFile)
	if err != nil {
		return fmt.Errorf("failed to read shapes: %w", err)
	}
	shapes, err := drawing.DecodeShapes(data)
	if err != nil {
		return err
	}

	view, err := openView(ctx, args[0], viewOptions())
	if err != nil {
		return err
	}
	defer view.Close()

	if err := view.AddShapes(shapes); err != nil {
		return err
	}
	path, err := exportOverlay(view, args[0])
	if err != nil {
		return err
	}
	return printMeasurements(view, path)
}
