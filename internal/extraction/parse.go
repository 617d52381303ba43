package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Extraction is the loosely-typed record decoded from one model reply.
type Extraction = map[string]any

var (
	leadingFence  = regexp.MustCompile("(?m)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("(?m)\\s*```$")
)

// StripFences removes markdown code fences that models like to wrap JSON in
func StripFences(text string) string {
	cleaned := leadingFence.ReplaceAllString(text, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// Decode strips fences and decodes the remaining text as a single JSON value.
// Numbers are kept as json.Number so nothing is lost before normalization.
// Text that is not valid JSON once the fences are gone is ErrMalformedOutput.
func Decode(text string) (any, error) {
	v, err := decodeJSON(StripFences(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	return v, nil
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parsing JSON: unexpected data after value")
	}
	return v, nil
}

// Sanitize turns a model reply into an Extraction. Anything other than a JSON
// object is reported as ErrMalformedOutput.
func Sanitize(text string) (Extraction, error) {
	v, err := Decode(text)
	if err != nil {
		return nil, err
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedOutput, describe(v))
	}
	return obj, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// encodePages serializes page extractions as an indented JSON array
func encodePages(pages []Extraction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(pages); err != nil {
		return nil, fmt.Errorf("encoding pages: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
