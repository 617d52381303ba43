package scanning

import "context"

// PageImage is one rasterized page of a document in its canonical encoding.
type PageImage struct {
	Data      []byte
	MediaType string // always "image/png" once rasterized
}

// Backend is a vision-capable text generation service.
type Backend interface {
	// Generate sends a text prompt, optionally alongside a page image, and
	// returns the raw model reply.
	Generate(ctx context.Context, prompt string, image *PageImage) (string, error)
	// Provider returns the backend identifier, e.g. "gemini".
	Provider() string
	// ModelName returns the model used for generation.
	ModelName() string
	// Close releases any resources held by the backend
	Close() error
}
