package scanning

import (
	"bytes"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-processor/internal/testdocs"
)

var _ = Describe("Rasterize", func() {
	var (
		data     []byte
		filename string
		pages    []PageImage
		err      error
	)

	JustBeforeEach(func() {
		pages, err = Rasterize(data, filename)
	})

	When("given a PNG image", func() {
		BeforeEach(func() {
			data = testdocs.PNG(40, 20)
			filename = "invoice.png"
		})

		It("produces exactly one page", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
		})

		It("tags the page as PNG", func() {
			Expect(pages[0].MediaType).To(Equal("image/png"))
		})

		It("keeps the image dimensions", func() {
			img, decodeErr := png.Decode(bytes.NewReader(pages[0].Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(40))
			Expect(img.Bounds().Dy()).To(Equal(20))
		})
	})

	When("given a JPEG image", func() {
		BeforeEach(func() {
			data = testdocs.JPEG(16, 16)
			filename = "scan.JPG"
		})

		It("re-encodes it as PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
			_, format, decodeErr := image.Decode(bytes.NewReader(pages[0].Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("given a grayscale image", func() {
		BeforeEach(func() {
			data = testdocs.GrayPNG(8, 8)
			filename = "gray.png"
		})

		It("converts it to an RGB colour model", func() {
			Expect(err).NotTo(HaveOccurred())
			img, decodeErr := png.Decode(bytes.NewReader(pages[0].Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(img).NotTo(BeAssignableToTypeOf(&image.Gray{}))
		})
	})

	When("given corrupt image data", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			filename = "broken.png"
		})

		It("returns ErrUnsupportedFormat", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
			Expect(pages).To(BeNil())
		})
	})

	When("given a three page PDF", func() {
		BeforeEach(func() {
			data = testdocs.PDF(3)
			filename = "statement.pdf"
		})

		It("renders one PNG per page", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(3))
			for _, page := range pages {
				Expect(page.MediaType).To(Equal("image/png"))
				_, decodeErr := png.Decode(bytes.NewReader(page.Data))
				Expect(decodeErr).NotTo(HaveOccurred())
			}
		})

		It("renders at 150 DPI", func() {
			img, decodeErr := png.Decode(bytes.NewReader(pages[0].Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			// 144pt at 150 DPI
			Expect(img.Bounds().Dx()).To(BeNumerically("~", 300, 2))
		})
	})

	When("given corrupt PDF data", func() {
		BeforeEach(func() {
			data = []byte("%PDF-1.4 garbage")
			filename = "broken.pdf"
		})

		It("returns ErrUnsupportedFormat", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})
	})
})

var _ = Describe("NormalizeImage", func() {
	When("a multi-page format is routed through the single image path", func() {
		It("returns ErrUnsupportedFormat", func() {
			_, err := NormalizeImage(testdocs.PDF(1), "invoice.pdf")
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})

		It("rejects upper-case extensions too", func() {
			_, err := NormalizeImage(testdocs.PNG(2, 2), "INVOICE.PDF")
			Expect(err).To(MatchError(ErrUnsupportedFormat))
		})
	})
})

var _ = Describe("Extension", func() {
	It("lower-cases and strips the dot", func() {
		Expect(Extension("Invoice.PDF")).To(Equal("pdf"))
		Expect(Extension("archive.tar.jpeg")).To(Equal("jpeg"))
	})

	It("returns empty for names without an extension", func() {
		Expect(Extension("noextension")).To(BeEmpty())
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the ftyp heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("ignores short input", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("ignores PNG data", func() {
		Expect(isHEICFormat(testdocs.PNG(2, 2))).To(BeFalse())
	})
})
