package scanning

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // Register WEBP decoder
)

// renderDPI is the resolution every PDF page is rendered at
const renderDPI = 150

const pngMediaType = "image/png"

// multiPageExtensions lists the formats rendered page by page through MuPDF
var multiPageExtensions = map[string]bool{
	"pdf": true,
}

// Extension returns the lower-cased filename extension without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsMultiPage reports whether the filename names a multi-page document format.
func IsMultiPage(filename string) bool {
	return multiPageExtensions[Extension(filename)]
}

// Rasterize converts a document into an ordered sequence of PNG page images.
// The filename is only used to pick the path: multi-page documents render
// every page, anything else is normalized as a single image.
func Rasterize(data []byte, filename string) ([]PageImage, error) {
	if IsMultiPage(filename) {
		return pdfToImages(data)
	}

	page, err := NormalizeImage(data, filename)
	if err != nil {
		return nil, err
	}
	return []PageImage{page}, nil
}

// pdfToImages renders every page of a PDF to PNG. The MuPDF document handle is
// released before returning on every path.
func pdfToImages(pdfData []byte) ([]PageImage, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %w", ErrUnsupportedFormat, err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrUnsupportedFormat)
	}

	pages := make([]PageImage, 0, count)
	for i := 0; i < count; i++ {
		img, err := doc.ImageDPI(i, renderDPI)
		if err != nil {
			return nil, fmt.Errorf("%w: rendering PDF page %d: %w", ErrUnsupportedFormat, i+1, err)
		}

		data, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i+1, err)
		}
		pages = append(pages, PageImage{Data: data, MediaType: pngMediaType})
	}

	return pages, nil
}

// NormalizeImage decodes a single raster image, converts it to RGB/RGBA and
// re-encodes it as PNG. Multi-page formats are rejected.
func NormalizeImage(imageData []byte, filename string) (PageImage, error) {
	if IsMultiPage(filename) {
		return PageImage{}, fmt.Errorf("%w: .%s files must be rasterized page by page", ErrUnsupportedFormat, Extension(filename))
	}

	img, err := decodeImage(imageData, filename)
	if err != nil {
		return PageImage{}, err
	}

	data, err := encodePNG(toRGB(img))
	if err != nil {
		return PageImage{}, err
	}
	return PageImage{Data: data, MediaType: pngMediaType}, nil
}

// decodeImage decodes any supported raster format, honouring EXIF orientation
func decodeImage(imageData []byte, filename string) (image.Image, error) {
	// Go's image package doesn't know HEIC/HEIF (common on iPhones)
	if isHEICFormat(imageData) || isHEICExtension(filename) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC/HEIF image: %w", ErrUnsupportedFormat, err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %w", ErrUnsupportedFormat, err)
	}
	return img, nil
}

// toRGB keeps RGBA images as they are and converts every other colour model
// (grayscale, CMYK, paletted, YCbCr) to NRGBA.
func toRGB(img image.Image) image.Image {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		return img
	default:
		return imaging.Clone(img)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with brand 'heic', 'heif', 'mif1' or 'msf1'
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

func isHEICExtension(filename string) bool {
	ext := Extension(filename)
	return ext == "heic" || ext == "heif"
}
