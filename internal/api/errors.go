package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/zombor/invoice-processor/internal/extraction"
	"github.com/zombor/invoice-processor/internal/scanning"
)

// ErrNotFound is returned when an invoice or its file does not exist.
var ErrNotFound = errors.New("not found")

// Error kinds reported to clients alongside error messages
const (
	KindInvalidFile       = "invalid_file"
	KindUnsupportedFormat = "unsupported_format"
	KindUpstreamModel     = "upstream_model"
	KindMalformedOutput   = "malformed_output"
	KindTimeout           = "timeout"
	KindNotFound          = "not_found"
	KindInternal          = "internal"
)

// ErrorKind classifies an error returned by the service
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFile):
		return KindInvalidFile
	case errors.Is(err, scanning.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, extraction.ErrMalformedOutput):
		return KindMalformedOutput
	// backends wrap their deadline errors in ErrUpstreamModel
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, scanning.ErrUpstreamModel):
		return KindUpstreamModel
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// httpStatus maps an error kind to the REST status code
func httpStatus(kind string) int {
	switch kind {
	case KindInvalidFile, KindUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case KindUpstreamModel, KindMalformedOutput:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
