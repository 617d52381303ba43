package invoice

import (
	"bytes"
	"encoding/csv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

func sampleInvoice() Invoice {
	return Invoice{
		VendorName:    ptr("ACME Corp"),
		InvoiceNumber: ptr("INV-001"),
		Currency:      ptr("USD"),
		Subtotal:      ptr(100.0),
		Discount:      ptr(0.0),
		TotalAmount:   ptr(108.25),
		LineItems: []LineItem{
			{Description: "Widget, large", Quantity: ptr(2.0), UnitPrice: ptr(50.0), Total: ptr(100.0)},
			{Description: "Handling"},
		},
	}
}

func readCSV(data []byte) [][]string {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	Expect(err).NotTo(HaveOccurred())
	return rows
}

func findRow(rows [][]string, first string) []string {
	for _, row := range rows {
		if len(row) > 0 && row[0] == first {
			return row
		}
	}
	return nil
}

var _ = Describe("ToCSV", func() {
	It("starts with a UTF-8 byte order mark", func() {
		out, err := ToCSV(sampleInvoice(), "abc-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(out[:3]).To(Equal(utf8BOM))
	})

	It("writes the summary sections and the invoice id", func() {
		out, err := ToCSV(sampleInvoice(), "abc-123")
		Expect(err).NotTo(HaveOccurred())
		rows := readCSV(out)

		Expect(rows[0]).To(Equal([]string{"INVOICE DATA EXPORT"}))
		Expect(findRow(rows, "Invoice ID")).To(Equal([]string{"Invoice ID", "abc-123"}))
		Expect(findRow(rows, "=== VENDOR ===")).NotTo(BeNil())
		Expect(findRow(rows, "=== TOTALS ===")).NotTo(BeNil())
		Expect(findRow(rows, "Vendor Name")).To(Equal([]string{"Vendor Name", "ACME Corp"}))
		Expect(findRow(rows, "TOTAL AMOUNT")).To(Equal([]string{"TOTAL AMOUNT", "108.25"}))
	})

	It("renders absent values empty and genuine zeros as 0", func() {
		out, err := ToCSV(sampleInvoice(), "abc-123")
		Expect(err).NotTo(HaveOccurred())
		rows := readCSV(out)

		Expect(findRow(rows, "Vendor Email")).To(Equal([]string{"Vendor Email", ""}))
		Expect(findRow(rows, "Shipping")).To(Equal([]string{"Shipping", ""}))
		Expect(findRow(rows, "Discount")).To(Equal([]string{"Discount", "0"}))
	})

	It("omits the notes section when there are no notes", func() {
		out, err := ToCSV(sampleInvoice(), "abc-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(findRow(readCSV(out), "=== NOTES ===")).To(BeNil())

		inv := sampleInvoice()
		inv.Notes = ptr("Paid in full")
		out, err = ToCSV(inv, "abc-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(findRow(readCSV(out), "Notes")).To(Equal([]string{"Notes", "Paid in full"}))
	})

	It("writes a numbered line item table", func() {
		out, err := ToCSV(sampleInvoice(), "abc-123")
		Expect(err).NotTo(HaveOccurred())
		rows := readCSV(out)

		Expect(findRow(rows, "#")).To(Equal([]string{"#", "Description", "Quantity", "Unit Price", "Total"}))
		Expect(findRow(rows, "1")).To(Equal([]string{"1", "Widget, large", "2", "50", "100"}))
		Expect(findRow(rows, "2")).To(Equal([]string{"2", "Handling", "", "", ""}))
	})

	It("handles an invoice with nothing extracted", func() {
		out, err := ToCSV(Normalize(map[string]any{}), "empty")
		Expect(err).NotTo(HaveOccurred())
		rows := readCSV(out)
		Expect(findRow(rows, "#")).NotTo(BeNil())
		Expect(findRow(rows, "1")).To(BeNil())
	})
})

var _ = Describe("ToExcel", func() {
	var book *excelize.File

	open := func(inv Invoice) *excelize.File {
		out, err := ToExcel(inv, "abc-123")
		Expect(err).NotTo(HaveOccurred())
		f, err := excelize.OpenReader(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		return f
	}

	AfterEach(func() {
		if book != nil {
			Expect(book.Close()).To(Succeed())
			book = nil
		}
	})

	It("produces the summary and line item sheets", func() {
		book = open(sampleInvoice())
		Expect(book.GetSheetList()).To(Equal([]string{"Invoice Summary", "Line Items"}))
	})

	It("writes the title and invoice id", func() {
		book = open(sampleInvoice())

		title, err := book.GetCellValue("Invoice Summary", "A1")
		Expect(err).NotTo(HaveOccurred())
		Expect(title).To(Equal("INVOICE EXPORT"))

		id, err := book.GetCellValue("Invoice Summary", "B1")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("ID: abc-123"))
	})

	It("writes the vendor section first", func() {
		book = open(sampleInvoice())

		header, _ := book.GetCellValue("Invoice Summary", "A3")
		label, _ := book.GetCellValue("Invoice Summary", "A4")
		value, _ := book.GetCellValue("Invoice Summary", "B4")
		Expect(header).To(Equal("VENDOR"))
		Expect(label).To(Equal("Vendor Name"))
		Expect(value).To(Equal("ACME Corp"))
	})

	It("lists every line item followed by a total row", func() {
		book = open(sampleInvoice())

		rows, err := book.GetRows("Line Items")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		Expect(rows[0]).To(Equal([]string{"#", "Description", "Quantity", "Unit Price", "Total"}))
		Expect(rows[1][1]).To(Equal("Widget, large"))
		Expect(rows[2][1]).To(Equal("Handling"))
		Expect(rows[3][1]).To(Equal("TOTAL"))

		raw, err := book.GetCellValue("Line Items", "E4", excelize.Options{RawCellValue: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(Equal("108.25"))
	})

	It("skips the total row when there are no line items", func() {
		book = open(Normalize(map[string]any{}))

		rows, err := book.GetRows("Line Items")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
