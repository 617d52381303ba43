package api

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zombor/invoice-processor/internal/invoice"
)

// Format is an output format for processed invoices
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// ParseFormat reads a format query value. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unknown format %q, use json, csv or excel", s)
	}
}

// Download is a rendered file ready to be sent to a client
type Download struct {
	Data        []byte
	ContentType string
	Filename    string
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Render encodes an invoice as a CSV or Excel download named after the
// original upload.
func Render(inv invoice.Invoice, id, filename string, format Format) (*Download, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "invoice"
	}

	switch format {
	case FormatCSV:
		data, err := invoice.ToCSV(inv, id)
		if err != nil {
			return nil, fmt.Errorf("rendering csv: %w", err)
		}
		return &Download{Data: data, ContentType: "text/csv; charset=utf-8", Filename: base + "_invoice.csv"}, nil
	case FormatExcel:
		data, err := invoice.ToExcel(inv, id)
		if err != nil {
			return nil, fmt.Errorf("rendering excel: %w", err)
		}
		return &Download{Data: data, ContentType: xlsxContentType, Filename: base + "_invoice.xlsx"}, nil
	default:
		return nil, fmt.Errorf("format %q is not a download format", format)
	}
}
