package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/invoice-processor/internal/invoice"
	"github.com/zombor/invoice-processor/internal/scanning"
)

// DefaultPageConcurrency is used when Options.PageConcurrency is not positive.
const DefaultPageConcurrency = 4

// Options tunes the pipeline.
type Options struct {
	// PageConcurrency caps how many pages are sent to the model at once.
	// 1 extracts pages sequentially.
	PageConcurrency int
}

// RasterizeFunc converts a document into page images
type RasterizeFunc func(data []byte, filename string) ([]scanning.PageImage, error)

// Pipeline runs a document through rasterization, per-page extraction,
// merging and normalization.
//
// A Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	extractor   *Extractor
	rasterize   RasterizeFunc
	concurrency int
}

// NewPipeline creates a Pipeline backed by the given model backend
func NewPipeline(backend scanning.Backend, opts Options) *Pipeline {
	return NewPipelineWithRasterizer(backend, opts, scanning.Rasterize)
}

// NewPipelineWithRasterizer creates a Pipeline with a custom rasterizer (for testing)
func NewPipelineWithRasterizer(backend scanning.Backend, opts Options, rasterize RasterizeFunc) *Pipeline {
	concurrency := opts.PageConcurrency
	if concurrency <= 0 {
		concurrency = DefaultPageConcurrency
	}
	return &Pipeline{
		extractor:   NewExtractor(backend),
		rasterize:   rasterize,
		concurrency: concurrency,
	}
}

// Process extracts an invoice from a document. It returns the normalized
// invoice and the number of pages that were extracted.
//
// Any rasterization, extraction or merge failure aborts the whole document.
func (p *Pipeline) Process(ctx context.Context, data []byte, filename string) (invoice.Invoice, int, error) {
	start := time.Now()

	pages, err := p.rasterize(data, filename)
	if err != nil {
		return invoice.Invoice{}, 0, fmt.Errorf("rasterizing %s: %w", filename, err)
	}
	slog.Info("Rasterized document", "filename", filename, "pages", len(pages))

	extractions, err := p.extractPages(ctx, pages)
	if err != nil {
		return invoice.Invoice{}, 0, err
	}

	merged, err := p.extractor.Merge(ctx, extractions)
	if err != nil {
		return invoice.Invoice{}, 0, err
	}

	result := invoice.Normalize(merged)

	slog.Info("Extracted invoice",
		"filename", filename,
		"pages", len(pages),
		"line_items", len(result.LineItems),
		"elapsed", time.Since(start),
	)
	return result, len(pages), nil
}

// extractPages runs ExtractPage for every page, bounded by the configured
// concurrency. Results keep document order regardless of completion order.
func (p *Pipeline) extractPages(ctx context.Context, pages []scanning.PageImage) ([]Extraction, error) {
	results := make([]Extraction, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, page := range pages {
		g.Go(func() error {
			pageStart := time.Now()
			result, err := p.extractor.ExtractPage(gctx, page)
			if err != nil {
				return fmt.Errorf("extracting page %d: %w", i+1, err)
			}
			slog.Debug("Extracted page", "page", i+1, "fields", len(result), "elapsed", time.Since(pageStart))
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
