package api

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-processor/internal/invoice"
	"github.com/zombor/invoice-processor/internal/logger"
)

// Processor extracts an invoice from a document
type Processor interface {
	Process(ctx context.Context, data []byte, filename string) (invoice.Invoice, int, error)
}

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Options configures the Service
type Options struct {
	// MaxFileSizeMB caps uploads; zero means DefaultMaxFileSizeMB
	MaxFileSizeMB int
	// Timeout bounds a single document's processing; zero means no limit
	Timeout time.Duration
	// Provider and Model are recorded on every invoice
	Provider string
	Model    string
}

// Service processes invoices and keeps their history
type Service struct {
	processor   Processor
	db          DB
	storage     Storage
	opts        Options
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with a UUID generator and the system clock
func NewService(processor Processor, db DB, storage Storage, opts Options) *Service {
	return NewServiceWithDeps(processor, db, storage, opts, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(processor Processor, db DB, storage Storage, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if opts.MaxFileSizeMB <= 0 {
		opts.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	return &Service{
		processor:   processor,
		db:          db,
		storage:     storage,
		opts:        opts,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// MaxFileSizeMB returns the configured upload ceiling
func (s *Service) MaxFileSizeMB() int {
	return s.opts.MaxFileSizeMB
}

// MaxFileSizeBytes returns the configured upload ceiling in bytes
func (s *Service) MaxFileSizeBytes() int64 {
	return int64(s.opts.MaxFileSizeMB) << 20
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}

	return base + ext
}

// ProcessInvoice validates a document, extracts its invoice and records it in
// the history.
//
// When processing fails the returned record still carries the ID, filename
// and elapsed time so transports can report them. A failure to store the
// result is logged and does not fail the request.
func (s *Service) ProcessInvoice(ctx context.Context, filename string, data []byte) (*Record, error) {
	log := logger.WithContext(ctx)

	if err := ValidateFile(filename, int64(len(data)), s.MaxFileSizeBytes()); err != nil {
		return nil, err
	}

	start := s.timeSource.Now()
	record := &Record{
		ID:          s.idGenerator.Generate(),
		Filename:    filename,
		ContentType: contentTypeFor(filename),
		Provider:    s.opts.Provider,
		Model:       s.opts.Model,
		CreatedAt:   start,
	}

	processCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		processCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	inv, pages, err := s.processor.Process(processCtx, data, filename)
	record.ProcessingTimeMS = s.timeSource.Now().Sub(start).Milliseconds()
	if err != nil {
		log.Error("Failed to process invoice",
			"invoice_id", record.ID,
			"filename", filename,
			"file_size", len(data),
			"kind", ErrorKind(err),
			"error", err,
		)
		return record, fmt.Errorf("processing invoice: %w", err)
	}

	record.PagesProcessed = pages
	record.Data = &inv

	log.Info("Processed invoice",
		"invoice_id", record.ID,
		"filename", filename,
		"pages", pages,
		"processing_time_ms", record.ProcessingTimeMS,
	)

	s.persist(ctx, record, data)
	return record, nil
}

// persist stores the upload and its record. Failures only lose history.
func (s *Service) persist(ctx context.Context, record *Record, data []byte) {
	log := logger.WithContext(ctx)
	// keep saving even if the client has gone away
	ctx = context.WithoutCancel(ctx)

	key, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", record.ID, sanitizeFilename(record.Filename)), data, record.ContentType)
	if err != nil {
		log.Warn("Failed to store invoice file", "invoice_id", record.ID, "error", err)
		return
	}
	record.StoredFile = key

	if err := s.db.SaveInvoice(record); err != nil {
		log.Warn("Failed to save invoice history", "invoice_id", record.ID, "error", err)
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			log.Warn("Failed to clean up invoice file", "file", key, "error", delErr)
		}
		record.StoredFile = ""
	}
}

// GetInvoice retrieves a processed invoice by ID
func (s *Service) GetInvoice(id string) (*Record, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return record, nil
}

// ListInvoices returns the history, newest first
func (s *Service) ListInvoices() ([]*Record, error) {
	records, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return records, nil
}

// GetInvoiceFile returns the original upload and its content type
func (s *Service) GetInvoiceFile(ctx context.Context, id string) ([]byte, string, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}
	if record.StoredFile == "" {
		return nil, "", fmt.Errorf("%w: no stored file for invoice %s", ErrNotFound, id)
	}

	data, err := s.storage.Get(ctx, record.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}
	return data, record.ContentType, nil
}

// DeleteInvoice removes an invoice and its stored file
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	if record.StoredFile != "" {
		if err := s.storage.Delete(ctx, record.StoredFile); err != nil {
			// Log error but continue with database deletion
			logger.WithContext(ctx).Warn("Failed to delete file", "file", record.StoredFile, "error", err)
		}
	}

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// ExportInvoice renders a stored invoice in the requested download format
func (s *Service) ExportInvoice(id string, format Format) (*Download, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	if record.Data == nil {
		return nil, fmt.Errorf("%w: invoice %s has no data", ErrNotFound, id)
	}
	return Render(*record.Data, record.ID, record.Filename, format)
}
