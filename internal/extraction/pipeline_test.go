package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-processor/internal/invoice"
	"github.com/zombor/invoice-processor/internal/scanning"
	"github.com/zombor/invoice-processor/internal/scanning/scanningtest"
	"github.com/zombor/invoice-processor/internal/testdocs"
)

func ptr[T any](v T) *T { return &v }

const singlePageReply = `{
	"vendor_name": "ACME Corp",
	"vendor_address": "1 Main St",
	"vendor_email": "billing@acme.test",
	"vendor_phone": null,
	"vendor_tax_id": "US-123",
	"client_name": "Globex",
	"client_address": null,
	"client_email": null,
	"invoice_number": "INV-001",
	"invoice_date": "2024-03-01",
	"due_date": "2024-03-31",
	"purchase_order_number": null,
	"currency": "USD",
	"line_items": [
		{"description": "Widget", "quantity": 2, "unit_price": 50, "total": 100},
		{"description": "Gadget", "quantity": 1, "unit_price": 8.25, "total": 8.25}
	],
	"subtotal": 108.25,
	"tax_rate": 0,
	"tax_amount": 0,
	"discount": null,
	"shipping": null,
	"total_amount": 108.25,
	"payment_terms": "Net 30",
	"payment_method": null,
	"bank_account": null,
	"notes": null
}`

var _ = Describe("Pipeline", func() {
	var (
		backend *scanningtest.Backend
		ctx     context.Context
	)

	BeforeEach(func() {
		backend = &scanningtest.Backend{}
		ctx = context.Background()
	})

	When("processing a single image", func() {
		It("returns the extracted record and one page", func() {
			backend.Pages = []string{"```json\n" + singlePageReply + "\n```"}
			pipeline := NewPipeline(backend, Options{})

			inv, pages, err := pipeline.Process(ctx, testdocs.PNG(40, 30), "invoice.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal(1))
			Expect(backend.CallCount()).To(Equal(1))

			Expect(inv).To(Equal(invoice.Invoice{
				VendorName:    ptr("ACME Corp"),
				VendorAddress: ptr("1 Main St"),
				VendorEmail:   ptr("billing@acme.test"),
				VendorTaxID:   ptr("US-123"),
				ClientName:    ptr("Globex"),
				InvoiceNumber: ptr("INV-001"),
				InvoiceDate:   ptr("2024-03-01"),
				DueDate:       ptr("2024-03-31"),
				Currency:      ptr("USD"),
				LineItems: []invoice.LineItem{
					{Description: "Widget", Quantity: ptr(2.0), UnitPrice: ptr(50.0), Total: ptr(100.0)},
					{Description: "Gadget", Quantity: ptr(1.0), UnitPrice: ptr(8.25), Total: ptr(8.25)},
				},
				Subtotal:     ptr(108.25),
				TaxRate:      ptr(0.0),
				TaxAmount:    ptr(0.0),
				TotalAmount:  ptr(108.25),
				PaymentTerms: ptr("Net 30"),
			}))
		})

		It("sends the model a PNG", func() {
			backend.Pages = []string{`{}`}
			pipeline := NewPipeline(backend, Options{})

			_, _, err := pipeline.Process(ctx, testdocs.JPEG(20, 20), "photo.JPG")
			Expect(err).NotTo(HaveOccurred())

			calls := backend.Calls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].Image.MediaType).To(Equal("image/png"))
			Expect(calls[0].Image.Data[:8]).To(Equal([]byte("\x89PNG\r\n\x1a\n")))
		})

		It("rejects corrupt images before calling the model", func() {
			pipeline := NewPipeline(backend, Options{})

			_, pages, err := pipeline.Process(ctx, []byte("not an image"), "invoice.png")
			Expect(err).To(MatchError(scanning.ErrUnsupportedFormat))
			Expect(pages).To(Equal(0))
			Expect(backend.CallCount()).To(Equal(0))
		})
	})

	When("processing a multi-page PDF", func() {
		It("extracts every page and merges them", func() {
			backend.Pages = []string{
				`{"vendor_name": "ACME", "line_items": [{"description": "p1-a", "total": 1}, {"description": "p1-b", "total": 2}]}`,
				`{"line_items": [{"description": "p2-a", "total": 3}]}`,
				`{"total_amount": 6, "line_items": [{"description": "p3-a", "total": 0}]}`,
			}

			// sequential so replies line up with pages
			pipeline := NewPipeline(lastWinsBackend(backend), Options{PageConcurrency: 1})

			inv, pages, err := pipeline.Process(ctx, testdocs.PDF(3), "statement.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal(3))

			Expect(inv.VendorName).To(Equal(ptr("ACME")))
			Expect(inv.TotalAmount).To(Equal(ptr(6.0)))
			Expect(inv.LineItems).To(HaveLen(4))
			descriptions := []string{}
			for _, item := range inv.LineItems {
				descriptions = append(descriptions, item.Description)
			}
			Expect(descriptions).To(Equal([]string{"p1-a", "p1-b", "p2-a", "p3-a"}))
			Expect(inv.LineItems[3].Total).To(Equal(ptr(0.0)))

			Expect(backend.CallCount()).To(Equal(4))
			Expect(backend.TextOnlyCalls()).To(HaveLen(1))
		})
	})

	When("pages are extracted concurrently", func() {
		var pipeline *Pipeline

		BeforeEach(func() {
			rasterize := func([]byte, string) ([]scanning.PageImage, error) {
				return []scanning.PageImage{
					{Data: []byte("page-1"), MediaType: "image/png"},
					{Data: []byte("page-2"), MediaType: "image/png"},
					{Data: []byte("page-3"), MediaType: "image/png"},
					{Data: []byte("page-4"), MediaType: "image/png"},
				}, nil
			}
			pipeline = NewPipelineWithRasterizer(backend, Options{PageConcurrency: 4}, rasterize)
		})

		It("merges results in page order regardless of completion order", func() {
			var mergePrompt atomic.Value
			backend.Respond = func(prompt string, image *scanning.PageImage) (string, error) {
				if image == nil {
					mergePrompt.Store(prompt)
					return `{"vendor_name": "merged"}`, nil
				}
				page := strings.TrimPrefix(string(image.Data), "page-")
				// earlier pages finish last
				delay := map[string]time.Duration{"1": 30, "2": 20, "3": 10, "4": 0}[page]
				time.Sleep(delay * time.Millisecond)
				return fmt.Sprintf(`{"page": %s}`, page), nil
			}

			inv, pages, err := pipeline.Process(ctx, nil, "doc.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal(4))
			Expect(inv.VendorName).To(Equal(ptr("merged")))

			Expect(mergePrompt.Load()).To(MatchRegexp(`(?s)"page": 1.*"page": 2.*"page": 3.*"page": 4`))
		})

		It("fails the whole document when one page fails", func() {
			backend.Respond = func(prompt string, image *scanning.PageImage) (string, error) {
				if image == nil {
					return `{}`, nil
				}
				if string(image.Data) == "page-3" {
					return "", fmt.Errorf("%w: connection reset", scanning.ErrUpstreamModel)
				}
				return `{}`, nil
			}

			_, pages, err := pipeline.Process(ctx, nil, "doc.pdf")
			Expect(err).To(MatchError(scanning.ErrUpstreamModel))
			Expect(err.Error()).To(ContainSubstring("page 3"))
			Expect(pages).To(Equal(0))
			Expect(backend.TextOnlyCalls()).To(BeEmpty())
		})

		It("fails the whole document when one page is malformed", func() {
			backend.Respond = func(prompt string, image *scanning.PageImage) (string, error) {
				if image != nil && string(image.Data) == "page-2" {
					return "no invoice here", nil
				}
				return `{}`, nil
			}

			_, _, err := pipeline.Process(ctx, nil, "doc.pdf")
			Expect(err).To(MatchError(ErrMalformedOutput))
			Expect(backend.TextOnlyCalls()).To(BeEmpty())
		})
	})
})

// lastWinsBackend answers merge requests like a compliant model and
// delegates page requests to b.
func lastWinsBackend(b *scanningtest.Backend) *scanningtest.Backend {
	pages := b.Pages
	var next atomic.Int32
	b.Respond = func(prompt string, image *scanning.PageImage) (string, error) {
		if image == nil {
			return lastWinsMerge(prompt), nil
		}
		return pages[next.Add(1)-1], nil
	}
	return b
}
