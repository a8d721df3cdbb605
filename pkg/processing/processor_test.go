package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{".JPG", FormatJPEG, false},
		{"jpeg", FormatJPEG, false},
		{"WebP", FormatWebP, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if FormatJPEG.Extension() != "jpg" || FormatPNG.ContentType() != "image/png" {
		t.Error("Unexpected format helpers")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(40, 30)
	for _, f := range []Format{FormatPNG, FormatJPEG, FormatWebP} {
		t.Run(string(f), func(t *testing.T) {
			data, err := EncodeBytes(src, EncodeOptions{Format: f, Quality: 90, Lossless: f == FormatWebP})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			img, err := p.DecodeImage(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
				t.Errorf("Expected 40x30, got %dx%d", b.Dx(), b.Dy())
			}
		})
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, createTestImage(2, 2), EncodeOptions{Format: "tiff"}); err == nil {
		t.Error("Expected an error for an unsupported format")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := NewProcessor().DecodeImage([]byte("not an image")); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessorWithConfig(Config{MinImageSize: 10})
	if err := p.ValidateImage(createTestImage(5, 20)); err == nil {
		t.Error("Expected small image to be rejected")
	}
	if err := p.ValidateImage(createTestImage(10, 10)); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	info := p.GetImageInfo(createTestImage(200, 100))
	if info.Width != 200 || info.Height != 100 || info.AspectRatio != 2 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestLoadImageFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facade.png")
	if err := SaveImage(createTestImage(16, 12), path, EncodeOptions{Format: FormatPNG}); err != nil {
		t.Fatal(err)
	}
	img, err := NewProcessor().LoadImageSmart(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("Expected 16x12, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := NewProcessor().LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestLoadImageFromURL(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, createTestImage(20, 10), nil); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/facade.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpg.Bytes())
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(context.Background(), srv.URL+"/facade.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("Expected 20x10, got %dx%d", b.Dx(), b.Dy())
	}
	if _, err := p.LoadImageFromURL(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("Expected an error for a non-image content type")
	}
	if _, err := p.LoadImageFromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("Expected an error for HTTP 404")
	}
	if _, err := p.LoadImageFromURL(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("Expected an error for an unsupported scheme")
	}
}

func TestLoadAsync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facade.jpg")
	if err := SaveImage(createTestImage(8, 8), path, EncodeOptions{Format: FormatJPEG}); err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-NewProcessor().LoadAsync(context.Background(), path):
		if res.Err != nil || res.Image == nil {
			t.Fatalf("Unexpected result %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("LoadAsync did not deliver a result")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, ok := <-NewProcessor().LoadAsync(ctx, path)
	if !ok || res.Err == nil || res.Image != nil {
		t.Errorf("Expected a cancellation error, got %+v", res)
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	encoded, err := p.PrepareImageForModel(createTestImage(400, 200), FormatJPEG, 100, 85)
	if err != nil {
		t.Fatal(err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("Expected 100x50, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSaveImageBadPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "dir")
	if err := SaveImage(createTestImage(2, 2), filepath.Join(dir, "x.png"), EncodeOptions{}); err == nil {
		t.Error("Expected an error writing into a missing directory")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("SaveImage should not create directories")
	}
}
