package invoice

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// utf8BOM lets Excel detect the CSV encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type field struct {
	label string
	value any // *string or *float64
}

type section struct {
	title  string
	fields []field
}

// sections lays out the summary part of both exports. Notes are only
// included when present.
func (inv Invoice) sections() []section {
	out := []section{
		{"VENDOR", []field{
			{"Vendor Name", inv.VendorName},
			{"Vendor Address", inv.VendorAddress},
			{"Vendor Email", inv.VendorEmail},
			{"Vendor Phone", inv.VendorPhone},
			{"Vendor Tax ID", inv.VendorTaxID},
		}},
		{"CLIENT", []field{
			{"Client Name", inv.ClientName},
			{"Client Address", inv.ClientAddress},
			{"Client Email", inv.ClientEmail},
		}},
		{"INVOICE META", []field{
			{"Invoice Number", inv.InvoiceNumber},
			{"Invoice Date", inv.InvoiceDate},
			{"Due Date", inv.DueDate},
			{"PO Number", inv.PurchaseOrderNumber},
			{"Currency", inv.Currency},
		}},
		{"TOTALS", []field{
			{"Subtotal", inv.Subtotal},
			{"Tax Rate (%)", inv.TaxRate},
			{"Tax Amount", inv.TaxAmount},
			{"Discount", inv.Discount},
			{"Shipping", inv.Shipping},
			{"TOTAL AMOUNT", inv.TotalAmount},
		}},
		{"PAYMENT", []field{
			{"Payment Terms", inv.PaymentTerms},
			{"Payment Method", inv.PaymentMethod},
			{"Bank Account", inv.BankAccount},
		}},
	}
	if inv.Notes != nil && *inv.Notes != "" {
		out = append(out, section{"NOTES", []field{{"Notes", inv.Notes}}})
	}
	return out
}

// ToCSV renders the invoice as a UTF-8 CSV (with BOM): a summary of label/value
// rows grouped by section followed by the line items table.
func ToCSV(inv Invoice, invoiceID string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"INVOICE DATA EXPORT"},
		{"Invoice ID", invoiceID},
		{},
	}
	for _, s := range inv.sections() {
		rows = append(rows, []string{"=== " + s.title + " ==="})
		for _, f := range s.fields {
			rows = append(rows, []string{f.label, cellText(f.value)})
		}
		rows = append(rows, []string{})
	}

	rows = append(rows,
		[]string{"=== LINE ITEMS ==="},
		[]string{"#", "Description", "Quantity", "Unit Price", "Total"},
	)
	for i, item := range inv.LineItems {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.Description,
			formatNumber(item.Quantity),
			formatNumber(item.UnitPrice),
			formatNumber(item.Total),
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func cellText(v any) string {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case *float64:
		return formatNumber(t)
	default:
		return ""
	}
}

// formatNumber renders absent values as an empty cell and keeps a genuine
// zero as "0".
func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// cellValue unwraps pointers so excelize writes a typed value or an empty cell
func cellValue(v any) any {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	default:
		return v
	}
}

const (
	summarySheet   = "Invoice Summary"
	lineItemsSheet = "Line Items"

	colorBlue     = "2563EB"
	colorLightBlu = "DBEAFE"
	colorDarkGray = "1E293B"
	colorLightGry = "F8FAFC"
	colorBorder   = "CBD5E1"
	moneyFormat   = "#,##0.00"
)

func borders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: colorBorder, Style: 1},
		{Type: "right", Color: colorBorder, Style: 1},
		{Type: "top", Color: colorBorder, Style: 1},
		{Type: "bottom", Color: colorBorder, Style: 1},
	}
}

type excelStyles struct {
	title, id, header, label, value, columnHeader, even, odd, money, bold, boldMoney int
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	var s excelStyles
	numFmt := moneyFormat
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14, Color: colorBlue}}},
		{&s.id, &excelize.Style{Font: &excelize.Font{Size: 10, Color: "64748B"}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorBlue}},
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
			Border:    borders(),
		}},
		{&s.label, &excelize.Style{
			Font:   &excelize.Font{Bold: true, Size: 10, Color: colorDarkGray},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorLightBlu}},
			Border: borders(),
		}},
		{&s.value, &excelize.Style{
			Font:   &excelize.Font{Size: 10, Color: colorDarkGray},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorLightGry}},
			Border: borders(),
		}},
		{&s.columnHeader, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 10, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colorBlue}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    borders(),
		}},
		{&s.even, &excelize.Style{
			Font:   &excelize.Font{Size: 10},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F1F5F9"}},
			Border: borders(),
		}},
		{&s.odd, &excelize.Style{
			Font:   &excelize.Font{Size: 10},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFFFF"}},
			Border: borders(),
		}},
		{&s.money, &excelize.Style{
			Font:         &excelize.Font{Size: 10},
			Alignment:    &excelize.Alignment{Horizontal: "right"},
			CustomNumFmt: &numFmt,
			Border:       borders(),
		}},
		{&s.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.boldMoney, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &numFmt}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, fmt.Errorf("creating style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}

// ToExcel renders the invoice as an .xlsx workbook with an "Invoice Summary"
// sheet and a "Line Items" sheet.
func ToExcel(inv Invoice, invoiceID string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	styles, err := newExcelStyles(f)
	if err != nil {
		return nil, err
	}

	if err := writeSummarySheet(f, styles, inv, invoiceID); err != nil {
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}
	if err := writeLineItemsSheet(f, styles, inv); err != nil {
		return nil, fmt.Errorf("writing line items sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, styles excelStyles, inv Invoice, invoiceID string) error {
	const sheet = summarySheet

	if err := f.SetCellValue(sheet, "A1", "INVOICE EXPORT"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "B1", "ID: "+invoiceID); err != nil {
		return err
	}
	_ = f.SetCellStyle(sheet, "A1", "A1", styles.title)
	_ = f.SetCellStyle(sheet, "B1", "B1", styles.id)
	_ = f.SetRowHeight(sheet, 1, 24)

	row := 3
	for _, s := range inv.sections() {
		header := fmt.Sprintf("A%d", row)
		if err := f.SetCellValue(sheet, header, s.title); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, header, fmt.Sprintf("B%d", row)); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, header, fmt.Sprintf("B%d", row), styles.header)

		for _, fld := range s.fields {
			row++
			label, value := fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)
			if err := f.SetCellValue(sheet, label, fld.label); err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, value, cellValue(fld.value)); err != nil {
				return err
			}
			_ = f.SetCellStyle(sheet, label, label, styles.label)
			_ = f.SetCellStyle(sheet, value, value, styles.value)
		}
		// blank gap after each section
		row += 2
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "B", 45)
	return nil
}

func writeLineItemsSheet(f *excelize.File, styles excelStyles, inv Invoice) error {
	const sheet = lineItemsSheet

	headers := []string{"#", "Description", "Quantity", "Unit Price", "Total"}
	widths := []float64{5, 55, 12, 14, 14}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, cell, cell, styles.columnHeader)
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, widths[i])
	}
	_ = f.SetRowHeight(sheet, 1, 20)

	for i, item := range inv.LineItems {
		row := i + 2
		fill := styles.odd
		if row%2 == 0 {
			fill = styles.even
		}

		values := []any{i + 1, item.Description, cellValue(item.Quantity), cellValue(item.UnitPrice), cellValue(item.Total)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
			style := fill
			if col >= 2 {
				style = styles.money
			}
			_ = f.SetCellStyle(sheet, cell, cell, style)
		}
	}

	if len(inv.LineItems) > 0 {
		row := len(inv.LineItems) + 2
		label, _ := excelize.CoordinatesToCellName(2, row)
		total, _ := excelize.CoordinatesToCellName(5, row)
		if err := f.SetCellValue(sheet, label, "TOTAL"); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, total, cellValue(inv.TotalAmount)); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, label, label, styles.bold)
		_ = f.SetCellStyle(sheet, total, total, styles.boldMoney)
	}

	return nil
}
