package api

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zombor/invoice-processor/internal/scanning"
)

// DefaultMaxFileSizeMB is the upload ceiling used when none is configured.
const DefaultMaxFileSizeMB = 20

// AllowedExtensions lists the file types accepted for processing
var AllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "webp", "tiff", "heic", "heif"}

// ErrInvalidFile is returned when an upload is rejected before processing.
var ErrInvalidFile = errors.New("invalid file")

// ValidateFile checks the filename extension and the size against maxBytes
func ValidateFile(filename string, size int64, maxBytes int64) error {
	ext := scanning.Extension(filename)
	if !slices.Contains(AllowedExtensions, ext) {
		return fmt.Errorf("%w: file type '.%s' not supported, allowed: %s",
			ErrInvalidFile, ext, strings.Join(AllowedExtensions, ", "))
	}
	if size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if size > maxBytes {
		return fmt.Errorf("%w: file too large (%.1f MB), maximum allowed: %d MB",
			ErrInvalidFile, float64(size)/(1<<20), maxBytes>>20)
	}
	return nil
}

// contentTypeFor guesses the MIME type of a stored upload from its extension
func contentTypeFor(filename string) string {
	switch scanning.Extension(filename) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "tiff":
		return "image/tiff"
	case "heic":
		return "image/heic"
	case "heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
