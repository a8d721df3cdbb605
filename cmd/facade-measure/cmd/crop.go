package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	facademeasure "github.com/menta2k/facade-measure"
	"github.com/menta2k/facade-measure/pkg/cropper"
	"github.com/menta2k/facade-measure/pkg/processing"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

var (
	cropPoints string
	cropTrim   bool
	cropName   string
)

var cropCmd = &cobra.Command{
	Use:   "crop IMAGE",
	Short: "Cut a polygon out of a photograph",
	Long: `Crop keeps the pixels inside a polygon given in image pixels and makes the
rest transparent. With --trim the result is cut down to the polygon bounds.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrop,
}

func init() {
	cropCmd.Flags().StringVar(&cropPoints, "points", "", "polygon vertices \"x,y x,y x,y\" (';' also separates)")
	cropCmd.Flags().BoolVar(&cropTrim, "trim", false, "cut the result to the polygon bounds")
	cropCmd.Flags().StringVar(&cropName, "name", cropper.DefaultFilename, "output file name")
	cropCmd.MarkFlagRequired("points")
	rootCmd.AddCommand(cropCmd)
}

func runCrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pts, err := parsePoints(cropPoints)
	if err != nil {
		return err
	}

	view := facademeasure.New(viewOptions())
	defer view.Close()
	if err := <-view.LoadAsync(ctx, args[0]); err != nil {
		return err
	}

	session := cropper.NewSession()
	identity := viewport.Identity()
	for _, p := range pts {
		session.AddPoint(p, identity)
	}
	if err := session.Complete(); err != nil {
		return err
	}
	out, err := session.Crop(view.Image(), cropTrim)
	if err != nil {
		return err
	}

	data, err := processing.EncodeBytes(out, processing.EncodeOptions{Format: processing.FormatPNG})
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, cropName)
	if err := writeFile(path, data); err != nil {
		return err
	}
	b := out.Bounds()
	fmt.Printf("Cropped %d points to %s (%dx%d)\n", len(pts), path, b.Dx(), b.Dy())
	return nil
}
