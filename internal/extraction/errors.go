package extraction

import "errors"

// ErrMalformedOutput is returned when a model reply cannot be decoded as the
// expected JSON object, even after removing markdown fences.
var ErrMalformedOutput = errors.New("malformed model output")
