package scanning

import "errors"

var (
	// ErrUnsupportedFormat is returned when a document cannot be decoded or
	// was routed through the wrong rasterization path.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUpstreamModel wraps every failure reported by a model backend.
	ErrUpstreamModel = errors.New("upstream model error")

	// ErrConfiguration is returned at startup for an unknown backend or a
	// missing credential.
	ErrConfiguration = errors.New("configuration error")
)
