package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/zombor/invoice-processor/internal/scanning"
)

// ErrNoPages is returned when asked to merge an empty set of page extractions.
var ErrNoPages = errors.New("no pages to merge")

// Extractor turns page images into raw extractions using a model backend.
type Extractor struct {
	backend scanning.Backend
}

// NewExtractor creates an Extractor for the given backend
func NewExtractor(backend scanning.Backend) *Extractor {
	return &Extractor{backend: backend}
}

// ExtractPage asks the model for the invoice fields visible on one page
func (e *Extractor) ExtractPage(ctx context.Context, page scanning.PageImage) (Extraction, error) {
	text, err := e.backend.Generate(ctx, ExtractionPrompt, &page)
	if err != nil {
		return nil, err
	}

	result, err := Sanitize(text)
	if err != nil {
		slog.Debug("Unparseable page extraction", "provider", e.backend.Provider(), "response", truncate(text, 200))
		return nil, err
	}
	return result, nil
}

// Merge reconciles per-page extractions into one record.
//
// A single page is returned as is without contacting the model. Otherwise the
// model receives every page as a JSON array together with MergePrompt, which
// asks for later pages to win on scalar fields and for line items to be
// concatenated. Those rules are followed by the model, not enforced here.
func (e *Extractor) Merge(ctx context.Context, pages []Extraction) (Extraction, error) {
	switch len(pages) {
	case 0:
		return nil, ErrNoPages
	case 1:
		return pages[0], nil
	}

	combined, err := encodePages(pages)
	if err != nil {
		return nil, err
	}

	slog.Debug("Merging page extractions", "pages", len(pages))

	text, err := e.backend.Generate(ctx, mergeRequest(combined), nil)
	if err != nil {
		return nil, fmt.Errorf("merging %d pages: %w", len(pages), err)
	}

	merged, err := Sanitize(text)
	if err != nil {
		return nil, fmt.Errorf("merging %d pages: %w", len(pages), err)
	}
	return merged, nil
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
