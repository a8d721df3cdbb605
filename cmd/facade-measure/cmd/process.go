package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/internal/utils"
	"github.com/menta2k/facade-measure/pkg/backend"
	"github.com/menta2k/facade-measure/pkg/processing"
)

var (
	actionName   string
	processScale float64
	listActions  bool
)

var processCmd = &cobra.Command{
	Use:   "process [IMAGE|DIR]",
	Short: "Send an image to the processing service",
	Long: `Process uploads an image to the processing service and saves the result.
Background removal uses one of the remover actions; the measurement actions
also need --scale in meters per pixel. Given a directory, every image below
it is processed in turn.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if listActions {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&actionName, "action", string(backend.ActionRemove), "processing action")
	processCmd.Flags().Float64Var(&processScale, "scale", 0, "scale in meters per pixel for measurement actions")
	processCmd.Flags().BoolVar(&listActions, "list", false, "list the available actions and exit")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if listActions {
		for _, a := range backend.Actions() {
			suffix := ""
			if a.NeedsScale() {
				suffix = " (needs --scale)"
			}
			fmt.Printf("%s%s\n", a, suffix)
		}
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	action, err := backend.ParseAction(actionName)
	if err != nil {
		return err
	}
	if action.NeedsScale() && !(processScale > 0) {
		return fmt.Errorf("action %s needs --scale", action)
	}

	client, err := backend.NewClient(cfg.BackendClient())
	if err != nil {
		return err
	}

	sources := []string{args[0]}
	if utils.DirExists(args[0]) {
		if sources, err = utils.ListImageFiles(args[0]); err != nil {
			return fmt.Errorf("failed to list %s: %w", args[0], err)
		}
		if len(sources) == 0 {
			return fmt.Errorf("no images found in %s", args[0])
		}
	}

	var failed int
	for _, source := range sources {
		if err := processOne(ctx, client, action, source); err != nil {
			if len(sources) == 1 {
				return err
			}
			failed++
			logger.WithError(err).WithField("source", source).Warn("Processing failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(sources))
	}
	return nil
}

func processOne(ctx context.Context, client *backend.Client, action backend.Action, source string) error {
	data, name, err := readSource(ctx, source)
	if err != nil {
		return err
	}
	req := backend.Request{Image: data, Filename: name, Action: action}
	if action.NeedsScale() {
		req.Scale = &processScale
	}
	resp, err := client.Process(ctx, req)
	if err != nil {
		return err
	}

	base := utils.SanitizeFilename(strings.TrimSuffix(name, filepath.Ext(name)))
	path := filepath.Join(outDir, fmt.Sprintf("%s_%s.%s", base, resp.Action, extensionFor(resp.ContentType)))
	if err := writeFile(path, resp.Data); err != nil {
		return err
	}
	fmt.Printf("%s: %s (%s)\n", resp.Action, path, utils.FormatFileSize(int64(len(resp.Data))))
	return nil
}

// readSource returns the raw bytes of a local file, or a JPEG re-encoding of
// a remote image
func readSource(ctx context.Context, source string) ([]byte, string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if !utils.IsImageFile(source) {
			return nil, "", fmt.Errorf("%s is not an image file", source)
		}
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", source, err)
		}
		return data, filepath.Base(source), nil
	}

	img, err := processing.NewProcessor().LoadImageFromURL(ctx, source)
	if err != nil {
		return nil, "", err
	}
	data, err := processing.EncodeBytes(img, processing.EncodeOptions{Format: processing.FormatJPEG, Quality: 95})
	if err != nil {
		return nil, "", err
	}
	return data, "image.jpg", nil
}
