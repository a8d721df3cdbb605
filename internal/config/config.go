package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/facade-measure/pkg/backend"
	"github.com/menta2k/facade-measure/pkg/calibration"
	"github.com/menta2k/facade-measure/pkg/drawing"
	"github.com/menta2k/facade-measure/pkg/processing"
	"github.com/menta2k/facade-measure/pkg/viewport"
)

// Config holds the application configuration
type Config struct {
	Measurement MeasurementConfig `json:"measurement"`
	Export      ExportConfig      `json:"export"`
	Calibration CalibrationConfig `json:"calibration"`
	Backend     BackendConfig     `json:"backend"`
	Vision      VisionConfig      `json:"vision"`
	Output      OutputConfig      `json:"output"`
}

// MeasurementConfig holds the drawing session tunables
type MeasurementConfig struct {
	MinZoom               float64 `json:"min_zoom"`
	MaxZoom               float64 `json:"max_zoom"`
	WheelStep             float64 `json:"wheel_step"`
	CloseTolerance        float64 `json:"close_tolerance"`
	NormalizeDecimalComma bool    `json:"normalize_decimal_comma"`
}

// ExportConfig holds overlay export settings
type ExportConfig struct {
	PixelRatio float64 `json:"pixel_ratio"`
	Format     string  `json:"format"`
	Quality    int     `json:"quality"`
	Lossless   bool    `json:"lossless"`
}

// CalibrationConfig holds calibration snapshot settings
type CalibrationConfig struct {
	SnapshotQuality int `json:"snapshot_quality"`
}

// BackendConfig holds the processing service location
type BackendConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// VisionConfig holds the vision model used for opening detection
type VisionConfig struct {
	Backend       string  `json:"backend"`
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	SendFormat    string  `json:"send_format"`
	SendMaxSize   int     `json:"send_max_size"`
	SendQuality   int     `json:"send_quality"`
	MinConfidence float64 `json:"min_confidence"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Measurement: MeasurementConfig{
			MinZoom:               viewport.DefaultMinZoom,
			MaxZoom:               viewport.DefaultMaxZoom,
			WheelStep:             viewport.DefaultWheelStep,
			CloseTolerance:        drawing.DefaultCloseTolerance,
			NormalizeDecimalComma: true,
		},
		Export: ExportConfig{
			PixelRatio: 2,
			Format:     "png",
			Quality:    90,
		},
		Calibration: CalibrationConfig{
			SnapshotQuality: 95,
		},
		Backend: BackendConfig{
			URL:            "http://localhost:8000",
			TimeoutSeconds: 300,
		},
		Vision: VisionConfig{
			Backend:       "ollama",
			URL:           "http://localhost:11434",
			Model:         "minicpm-v4.5",
			SendFormat:    "jpeg",
			SendMaxSize:   1280,
			SendQuality:   85,
			MinConfidence: 0.3,
		},
		Output: OutputConfig{
			OutputDir: "./output",
			Suffix:    "_measured",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	m := c.Measurement
	if err := (viewport.Bounds{Min: m.MinZoom, Max: m.MaxZoom}).Validate(); err != nil {
		return fmt.Errorf("measurement zoom range: %w", err)
	}
	if m.WheelStep <= 1 {
		return fmt.Errorf("measurement.wheel_step must be greater than 1")
	}
	if m.CloseTolerance <= 0 {
		return fmt.Errorf("measurement.close_tolerance must be positive")
	}

	if c.Export.PixelRatio <= 0 {
		return fmt.Errorf("export.pixel_ratio must be positive")
	}
	if _, err := processing.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	if c.Calibration.SnapshotQuality < 1 || c.Calibration.SnapshotQuality > 100 {
		return fmt.Errorf("calibration.snapshot_quality must be between 1 and 100")
	}

	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url cannot be empty")
	}
	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend.timeout_seconds must be positive")
	}

	switch c.Vision.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.backend must be ollama or llamacpp")
	}
	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}
	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return fmt.Errorf("vision.min_confidence must be between 0 and 1")
	}
	return nil
}

// Drawing returns the drawing session settings
func (c *Config) Drawing() drawing.Config {
	return drawing.Config{
		Zoom:           viewport.Bounds{Min: c.Measurement.MinZoom, Max: c.Measurement.MaxZoom},
		WheelStep:      c.Measurement.WheelStep,
		CloseTolerance: c.Measurement.CloseTolerance,
	}
}

// CalibrationOptions returns the calibration session settings
func (c *Config) CalibrationOptions() calibration.Options {
	return calibration.Options{
		NormalizeDecimalComma: c.Measurement.NormalizeDecimalComma,
		SnapshotQuality:       c.Calibration.SnapshotQuality,
	}
}

// EncodeOptions returns the export encoder settings
func (c *Config) EncodeOptions() processing.EncodeOptions {
	f, err := processing.ParseFormat(c.Export.Format)
	if err != nil {
		f = processing.FormatPNG
	}
	return processing.EncodeOptions{Format: f, Quality: c.Export.Quality, Lossless: c.Export.Lossless}
}

// BackendClient returns the processing service settings
func (c *Config) BackendClient() backend.Config {
	return backend.Config{
		BaseURL: c.Backend.URL,
		Timeout: time.Duration(c.Backend.TimeoutSeconds) * time.Second,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "facade-measure", "config.json")
}
