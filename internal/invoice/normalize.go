package invoice

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize converts a merged, loosely-typed extraction into an Invoice.
//
// It never fails. Model output is untrusted, so values of the wrong shape
// degrade to absent fields instead of discarding the rest of the record.
func Normalize(data map[string]any) Invoice {
	return Invoice{
		VendorName:    Text(data["vendor_name"]),
		VendorAddress: Text(data["vendor_address"]),
		VendorEmail:   Text(data["vendor_email"]),
		VendorPhone:   Text(data["vendor_phone"]),
		VendorTaxID:   Text(data["vendor_tax_id"]),

		ClientName:    Text(data["client_name"]),
		ClientAddress: Text(data["client_address"]),
		ClientEmail:   Text(data["client_email"]),

		InvoiceNumber:       Text(data["invoice_number"]),
		InvoiceDate:         Text(data["invoice_date"]),
		DueDate:             Text(data["due_date"]),
		PurchaseOrderNumber: Text(data["purchase_order_number"]),
		Currency:            Text(data["currency"]),

		LineItems: lineItems(data["line_items"]),

		Subtotal:    Number(data["subtotal"]),
		TaxRate:     Number(data["tax_rate"]),
		TaxAmount:   Number(data["tax_amount"]),
		Discount:    Number(data["discount"]),
		Shipping:    Number(data["shipping"]),
		TotalAmount: Number(data["total_amount"]),

		PaymentTerms:  Text(data["payment_terms"]),
		PaymentMethod: Text(data["payment_method"]),
		BankAccount:   Text(data["bank_account"]),

		Notes: Text(data["notes"]),
	}
}

// Number coerces a decoded JSON value into a finite float.
//
// nil, non-numeric text, NaN, infinities and any other type all yield nil.
// It never returns zero in place of a missing value.
func Number(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, ok := parseDecimal(t.String())
		if !ok {
			return nil
		}
		f = parsed
	case string:
		parsed, ok := parseDecimal(t)
		if !ok {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseDecimal parses base-10 numeric text. Hex and other base prefixes are
// rejected; single underscores between digits are allowed ("1_000").
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	unsigned := strings.TrimLeft(s, "+-")
	if len(unsigned) > 1 && unsigned[0] == '0' && strings.ContainsAny(unsigned[1:2], "xXbBoO") {
		return 0, false
	}

	if strings.Contains(s, "_") {
		for i := 0; i < len(s); i++ {
			if s[i] != '_' {
				continue
			}
			if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
				return 0, false
			}
		}
		s = strings.ReplaceAll(s, "_", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Text copies a string value through. Numbers and booleans are rendered as
// text (models like to return invoice numbers as integers); nil, objects and
// arrays yield nil.
func Text(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return &s
}

// lineItems normalizes each element independently. Elements that are not
// objects are skipped. The result is never nil.
func lineItems(v any) []LineItem {
	items := []LineItem{}

	raw, ok := v.([]any)
	if !ok {
		return items
	}

	for _, element := range raw {
		m, ok := element.(map[string]any)
		if !ok {
			continue
		}

		description := ""
		if d := Text(m["description"]); d != nil {
			description = *d
		}

		items = append(items, LineItem{
			Description: description,
			Quantity:    Number(m["quantity"]),
			UnitPrice:   Number(m["unit_price"]),
			Total:       Number(m["total"]),
		})
	}

	return items
}
