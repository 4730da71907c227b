// Package codec centralizes JSON encoding for results files and JSON inputs.
//
// Results files are consumed by regression tooling, so the field names of
// encoded values are a compatibility boundary.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Decoder reads a stream of concatenated values.
type Decoder interface {
	Decode(v any) error
	More() bool
}

// StreamCodec is a Codec that can decode value streams such as JSON lines.
type StreamCodec interface {
	Codec
	NewDecoder(r io.Reader) Decoder
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "go-json", "json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the codec used for results files and JSON inputs.
var Default StreamCodec = GoJSON{}
