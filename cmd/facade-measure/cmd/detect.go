package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/pkg/client"
	"github.com/menta2k/facade-measure/pkg/detection"
	"github.com/menta2k/facade-measure/pkg/llamacpp"
	"github.com/menta2k/facade-measure/pkg/ollama"
	"github.com/menta2k/facade-measure/pkg/processing"
	"github.com/menta2k/facade-measure/pkg/types"
)

var (
	visionBackend string
	visionURL     string
	visionModel   string
	promptFile    string
	minConfidence float64
	testVision    bool
)

var detectCmd = &cobra.Command{
	Use:   "detect IMAGE",
	Short: "Detect façade openings with a vision model and measure them",
	Long: `Detect asks a vision model (Ollama or a llama.cpp server) for the façade
outline and its windows, doors, balconies and garage doors, then draws each
one as a measured rectangle and exports the overlay.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&visionBackend, "backend", "", "vision backend: ollama|llamacpp (default from config)")
	detectCmd.Flags().StringVar(&visionURL, "url", "", "vision server URL (default from config)")
	detectCmd.Flags().StringVar(&visionModel, "model", "", "vision model (default from config)")
	detectCmd.Flags().StringVar(&promptFile, "prompt", "", "file with a custom detection prompt")
	detectCmd.Flags().Float64Var(&minConfidence, "min-confidence", -1, "drop openings below this confidence (default from config)")
	detectCmd.Flags().BoolVar(&testVision, "test", false, "only check that the model can see the image")
	addOverlayFlags(detectCmd)
	rootCmd.AddCommand(detectCmd)
}

// newVisionClient builds the client for the named backend
func newVisionClient(backend, serverURL string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		c, err := ollama.NewClient(serverURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(serverURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q (want ollama or llamacpp)", backend)
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backendName := firstNonEmpty(visionBackend, cfg.Vision.Backend)
	model := firstNonEmpty(visionModel, cfg.Vision.Model)
	vc, err := newVisionClient(backendName, firstNonEmpty(visionURL, cfg.Vision.URL))
	if err != nil {
		return err
	}
	detector := detection.NewDetector(vc)
	if minConfidence >= 0 {
		detector.SetMinConfidence(minConfidence)
	} else {
		detector.SetMinConfidence(cfg.Vision.MinConfidence)
	}

	view, err := openView(ctx, args[0], viewOptions())
	if err != nil {
		return err
	}
	defer view.Close()

	img := view.Image()
	sendFormat, err := processing.ParseFormat(cfg.Vision.SendFormat)
	if err != nil {
		sendFormat = processing.FormatJPEG
	}
	imgB64, err := processing.NewProcessor().PrepareImageForModel(img, sendFormat, cfg.Vision.SendMaxSize, cfg.Vision.SendQuality)
	if err != nil {
		return fmt.Errorf("failed to prepare image: %w", err)
	}

	log := logger.WithField("backend", backendName).WithField("model", model)
	if testVision {
		reply, err := detector.TestVision(ctx, model, imgB64)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	prompt := detection.DefaultPrompt
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(data)
	}

	log.Info("Detecting openings")
	result, err := detector.DetectOpeningsWithPrompt(ctx, model, imgB64, prompt)
	if err != nil {
		return err
	}
	if result.Fallback {
		log.Warn("Model reply was not valid JSON, using the whole frame")
	}

	b := img.Bounds()
	if err := view.AddShapes(detection.ToShapes(result, b.Dx(), b.Dy())); err != nil {
		return err
	}
	path, err := exportOverlay(view, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printDetection(result, path)
	}
	fmt.Printf("Floors: %d, openings: %d\n", result.Floors, len(result.Openings))
	if result.Description != "" {
		fmt.Printf("Description: %s\n", result.Description)
	}
	for i, o := range result.Openings {
		fmt.Printf("  %d. %-8s %.0f%%\n", i+1, o.Label, o.Confidence*100)
	}
	return printMeasurements(view, path)
}

func printDetection(result *types.FacadeAnalysis, output string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*types.FacadeAnalysis
		Output string `json:"output"`
	}{result, output})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
