package api

import (
	"time"

	"github.com/zombor/invoice-processor/internal/invoice"
)

// Record is one processed upload kept in the invoice history
type Record struct {
	ID               string           `json:"id"`
	Filename         string           `json:"filename"`
	StoredFile       string           `json:"stored_file,omitempty"`
	ContentType      string           `json:"content_type"`
	PagesProcessed   int              `json:"pages_processed"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	Provider         string           `json:"provider,omitempty"`
	Model            string           `json:"model,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Data             *invoice.Invoice `json:"data"`
}
