package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/facade-measure/internal/config"
	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/internal/utils"
)

var (
	// Global flags
	configPath string
	logLevel   string
	outDir     string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "facade-measure",
	Short: "Calibrated façade measurement and overlay export",
	Long: `Measure building façades on a photograph: calibrate a scale from two
reference points and a known distance, annotate lines, rectangles and
polygons with their real-world dimensions, and export the overlay.

Examples:
  facade-measure calibrate facade.jpg --p1 120,400 --p2 120,650 --distance 2,5
  facade-measure annotate facade.jpg --shapes shapes.json --scale 0.01
  facade-measure detect facade.jpg --backend ollama --model minicpm-v4.5
  facade-measure process facade.jpg --action remover_u2net
  facade-measure crop facade.jpg --points "10,10 300,12 290,400 15,380"`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("log-level") {
			logger.SetLevel(logLevel)
		}
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		if !cmd.Flags().Changed("out") {
			outDir = cfg.Output.OutputDir
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
}

// loadConfig reads the explicit --config file, else the default path when it
// exists, else the built-in defaults
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	c, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}
