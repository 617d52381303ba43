// Package scanningtest provides a scriptable scanning.Backend for tests.
package scanningtest

import (
	"context"
	"sync"

	"github.com/zombor/invoice-processor/internal/scanning"
)

// Call records one Generate invocation.
type Call struct {
	Prompt string
	Image  *scanning.PageImage
}

// Backend is a scanning.Backend whose replies come from Respond.
//
// When Respond is nil, page requests are answered from Pages in call order and
// text-only requests (merges) get Merged.
type Backend struct {
	Respond func(prompt string, image *scanning.PageImage) (string, error)

	Pages  []string
	Merged string
	Err    error

	mu    sync.Mutex
	calls []Call
	pageN int
}

// Generate records the call and returns the scripted reply
func (b *Backend) Generate(ctx context.Context, prompt string, image *scanning.PageImage) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Prompt: prompt, Image: image})
	n := b.pageN
	if image != nil {
		b.pageN++
	}
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.Err != nil {
		return "", b.Err
	}
	if b.Respond != nil {
		return b.Respond(prompt, image)
	}
	if image == nil {
		return b.Merged, nil
	}
	if n < len(b.Pages) {
		return b.Pages[n], nil
	}
	return "{}", nil
}

// Calls returns a copy of every recorded call
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns the number of Generate calls
func (b *Backend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// TextOnlyCalls returns the calls made without an image
func (b *Backend) TextOnlyCalls() []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Image == nil {
			out = append(out, c)
		}
	}
	return out
}

// Provider returns "fake"
func (b *Backend) Provider() string { return "fake" }

// ModelName returns "fake-model"
func (b *Backend) ModelName() string { return "fake-model" }

// Close is a no-op
func (b *Backend) Close() error { return nil }
