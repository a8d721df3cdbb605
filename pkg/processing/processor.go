package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Format is an encoded raster format
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat accepts png, jpg, jpeg and webp in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported image format: %s", s)
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType returns the MIME type
func (f Format) ContentType() string {
	return "image/" + string(f)
}

// EncodeOptions controls Encode
type EncodeOptions struct {
	Format   Format
	Quality  int
	Lossless bool
}

// Config holds the loader settings
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MinImageSize int
}

// Processor handles image loading and encoding
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a new image processor with a 30s download timeout
func NewProcessor() *Processor {
	return NewProcessorWithConfig(Config{
		Timeout:      30 * time.Second,
		UserAgent:    "facade-measure/1.0",
		MinImageSize: 1,
	})
}

// NewProcessorWithConfig creates a processor with custom settings
func NewProcessorWithConfig(cfg Config) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Processor{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.DecodeImage(data)
}

// LoadImage loads an image from a file path, honouring EXIF orientation
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, p.ValidateImage(img)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return p.DecodeImage(data)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// LoadResult is delivered by LoadAsync
type LoadResult struct {
	Image image.Image
	Err   error
}

// LoadAsync decodes source in the background. The channel receives exactly
// one result and is then closed. Cancelling ctx abandons the result.
func (p *Processor) LoadAsync(ctx context.Context, source string) <-chan LoadResult {
	out := make(chan LoadResult, 1)
	go func() {
		defer close(out)
		img, err := p.LoadImageSmart(ctx, source)
		if ctxErr := ctx.Err(); ctxErr != nil && err == nil {
			err = ctxErr
			img = nil
		}
		out <- LoadResult{Image: img, Err: err}
	}()
	return out
}

// DecodeImage decodes image bytes with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, p.ValidateImage(img)
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, p.ValidateImage(img)
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
}

// GetImageInfo returns basic information about an image
func (p *Processor) GetImageInfo(img image.Image) ImageInfo {
	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

// ValidateImage checks that an image meets the minimum size
func (p *Processor) ValidateImage(img image.Image) error {
	b := img.Bounds()
	min := p.config.MinImageSize
	if min < 1 {
		min = 1
	}
	if b.Dx() < min || b.Dy() < min {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), min)
	}
	return nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format Format, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if format != FormatPNG {
		format = FormatJPEG
	}
	if err := Encode(&buf, img, EncodeOptions{Format: format, Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Encode writes img in the requested format
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = 90
	}
	switch opts.Format {
	case FormatPNG, "":
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	}
	return fmt.Errorf("unsupported output format: %s", opts.Format)
}

// EncodeBytes encodes img into a new byte slice
func EncodeBytes(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func SaveImage(img image.Image, path string, opts EncodeOptions) error {
	data, err := EncodeBytes(img, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
