package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "webp": {}, "gif": {}, "bmp": {}, "tiff": {},
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-case file extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	_, ok := imageExts[GetFileExtension(filename)]
	return ok
}

// OutputFilename builds <dir>/<prefix><name><suffix>.<ext> from an input path
func OutputFilename(inputFile, outputDir, prefix, suffix, ext string) string {
	base := filepath.Base(inputFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "" {
		ext = GetFileExtension(inputFile)
		if ext == "" {
			ext = "png"
		}
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s%s%s.%s", prefix, name, suffix, ext))
}

// ListImageFiles returns the image files below dir in lexical order
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(filename string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return strings.Trim(r.Replace(filename), " .")
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
