package invoice

// LineItem is one row of an invoice's itemised charges.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Total       *float64 `json:"total"`
}

// Invoice is the validated result of an extraction. A nil field means the
// value was not present on the source document; it is never a stand-in for
// zero or the empty string.
type Invoice struct {
	// Vendor / seller
	VendorName    *string `json:"vendor_name"`
	VendorAddress *string `json:"vendor_address"`
	VendorEmail   *string `json:"vendor_email"`
	VendorPhone   *string `json:"vendor_phone"`
	VendorTaxID   *string `json:"vendor_tax_id"`

	// Client / buyer
	ClientName    *string `json:"client_name"`
	ClientAddress *string `json:"client_address"`
	ClientEmail   *string `json:"client_email"`

	// Invoice meta
	InvoiceNumber       *string `json:"invoice_number"`
	InvoiceDate         *string `json:"invoice_date"` // YYYY-MM-DD when the model could tell
	DueDate             *string `json:"due_date"`
	PurchaseOrderNumber *string `json:"purchase_order_number"`
	Currency            *string `json:"currency"` // ISO 4217

	LineItems []LineItem `json:"line_items"`

	// Totals
	Subtotal    *float64 `json:"subtotal"`
	TaxRate     *float64 `json:"tax_rate"`
	TaxAmount   *float64 `json:"tax_amount"`
	Discount    *float64 `json:"discount"`
	Shipping    *float64 `json:"shipping"`
	TotalAmount *float64 `json:"total_amount"`

	// Payment
	PaymentTerms  *string `json:"payment_terms"`
	PaymentMethod *string `json:"payment_method"`
	BankAccount   *string `json:"bank_account"`

	Notes *string `json:"notes"`
}
