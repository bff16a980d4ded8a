// Package apijson decodes JSON bodies returned by the File API.
package apijson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeError reports a body that could not be decoded into the target type.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	snippet := e.Body
	if len(snippet) > 128 {
		snippet = append(append([]byte(nil), snippet[:128]...), "..."...)
	}
	return fmt.Sprintf("decode json: %v (body=%q)", e.Err, snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNull reports whether body is empty, whitespace or the JSON literal null.
func IsNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals body into out. An empty body is treated as JSON null, so
// slices and pointers are left nil instead of failing.
func Decode(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &DecodeError{Body: append([]byte(nil), trimmed...), Err: err}
	}
	return nil
}
