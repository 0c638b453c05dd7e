// Package ndjson encodes values as newline-delimited JSON: one JSON object
// per line, each line terminated by '\n'.
package ndjson

import (
	"bytes"
	"encoding/json"
)

func Marshal[T any](values []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, v := range values {
		// Encode appends the trailing newline itself.
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
