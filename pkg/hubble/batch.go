package hubble

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Batch is the body of one request: the caller's named fields.
type Batch map[string]any

// DecodeBatch reads a single JSON object from r. Numbers are kept as
// json.Number so they are re-encoded exactly as read.
func DecodeBatch(r io.Reader) (Batch, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var b Batch
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if b == nil {
		return nil, errors.New("decode batch: expected a JSON object")
	}
	if dec.More() {
		return nil, errors.New("decode batch: trailing data after JSON object")
	}
	return b, nil
}
