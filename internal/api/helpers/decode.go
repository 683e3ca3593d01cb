package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 64 << 10

var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes a single JSON object from the request body.
//
// Unknown fields are rejected, bodies larger than MaxBodyBytes are refused
// and trailing data after the object is an error.
//
// Usage:
//
//	var req contact.Request
//	if err := helpers.DecodeJSON(w, r, &req); err != nil {
//	    ...
//	}
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: trailing data after object")
	}

	return nil
}
