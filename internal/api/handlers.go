package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zombor/invoice-processor/internal/invoice"
	"github.com/zombor/invoice-processor/internal/logger"
)

// InvoiceResponse is the JSON body returned by POST /process
type InvoiceResponse struct {
	Success          bool             `json:"success"`
	InvoiceID        string           `json:"invoice_id"`
	Filename         string           `json:"filename"`
	PagesProcessed   int              `json:"pages_processed"`
	Data             *invoice.Invoice `json:"data"`
	Error            string           `json:"error,omitempty"`
	ErrorKind        string           `json:"error_kind,omitempty"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// HealthResponse is the JSON body returned by GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Version  string `json:"version"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	writeJSON(w, status, errorResponse{Error: message, ErrorKind: kind})
}

// writeServiceError maps a service error to its status and error kind
func writeServiceError(w http.ResponseWriter, err error) {
	kind := ErrorKind(err)
	message := err.Error()
	if kind == KindInternal {
		message = "Internal server error"
	}
	writeError(w, httpStatus(kind), message, kind)
}

func writeDownload(w http.ResponseWriter, d *Download) {
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

// handleInfo describes the service and its endpoints
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	base := scheme + "://" + r.Host

	writeJSON(w, http.StatusOK, map[string]any{
		"name":     s.info.Name,
		"version":  s.info.Version,
		"provider": s.info.Provider,
		"model":    s.info.Model,
		"endpoints": map[string]string{
			"health":    base + "/health",
			"process":   base + "/process?format=json|csv|excel",
			"invoices":  base + "/api/invoices",
			"a2a_card":  base + "/.well-known/agent.json",
			"a2a_tasks": base + "/a2a",
			"mcp":       base + "/mcp",
		},
	})
}

// handleHealth reports liveness and the configured model
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Provider: s.info.Provider,
		Model:    s.info.Model,
		Version:  s.info.Version,
	})
}

// handleProcess extracts an uploaded invoice and returns it as JSON, CSV or Excel
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	log := logger.WithContext(r.Context())

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	// room for the multipart envelope on top of the file itself
	maxBody := s.service.MaxFileSizeBytes() + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("File too large. Maximum allowed: %d MB", s.service.MaxFileSizeMB()), KindInvalidFile)
			return
		}
		log.Warn("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Error parsing form", "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided in the 'file' field", "")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file", "")
		return
	}

	record, err := s.service.ProcessInvoice(r.Context(), header.Filename, data)
	if err != nil {
		kind := ErrorKind(err)
		// Rejected uploads never reach the pipeline and have no record
		if record == nil || format != FormatJSON {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, httpStatus(kind), InvoiceResponse{
			Success:          false,
			InvoiceID:        record.ID,
			Filename:         record.Filename,
			Error:            err.Error(),
			ErrorKind:        kind,
			ProcessingTimeMS: record.ProcessingTimeMS,
		})
		return
	}

	if format == FormatJSON {
		writeJSON(w, http.StatusOK, InvoiceResponse{
			Success:          true,
			InvoiceID:        record.ID,
			Filename:         record.Filename,
			PagesProcessed:   record.PagesProcessed,
			Data:             record.Data,
			ProcessingTimeMS: record.ProcessingTimeMS,
		})
		return
	}

	download, err := Render(*record.Data, record.ID, record.Filename, format)
	if err != nil {
		log.Error("Error rendering invoice", "invoice_id", record.ID, "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "Error rendering invoice", KindInternal)
		return
	}
	writeDownload(w, download)
}

// handleListInvoices returns the processing history
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListInvoices()
	if err != nil {
		logger.WithContext(r.Context()).Error("Error listing invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", KindInternal)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetInvoice returns a single processed invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetInvoice(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleGetInvoiceFile returns the original upload
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetInvoiceFile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// handleExportInvoice renders a stored invoice as CSV or Excel
func (s *Server) handleExportInvoice(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err == nil && format == FormatJSON {
		err = errors.New("export format must be csv or excel")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	download, err := s.service.ExportInvoice(r.PathValue("id"), format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeDownload(w, download)
}

// handleDeleteInvoice removes an invoice from the history
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
