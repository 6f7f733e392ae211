// Package jsonutil writes command results as JSON.
package jsonutil

import (
	"io"

	"github.com/segmentio/encoding/json"
)

// Write encodes v to w as indented JSON followed by a newline
func Write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
