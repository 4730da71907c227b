// Package input loads vector datasets from files for the scan benchmark.
//
// The format is detected from the file extension:
//
//	.parquet                 Parquet (read through Arrow)
//	.arrow, .ipc, .feather   Arrow IPC file or stream
//	.csv                     CSV with a header row
//	.json, .jsonl, .ndjson   JSON array or JSON lines
//
// A row becomes one vector. A list column of numbers is used when present,
// otherwise all numeric columns of the row form the vector in schema order.
package input

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an input file format.
type Format int

const (
	FormatParquet Format = iota + 1
	FormatArrow
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatParquet:
		return "Parquet"
	case FormatArrow:
		return "Arrow"
	case FormatCSV:
		return "CSV"
	case FormatJSON:
		return "JSON"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("input: unsupported format")
	// ErrNoVectors is returned when no column can be read as a vector.
	ErrNoVectors = errors.New("input: no vector column")
	// ErrRagged is returned when rows have different dimensions.
	ErrRagged = errors.New("input: vectors have different dimensions")
	// ErrNull is returned for null vectors or vector elements.
	ErrNull = errors.New("input: null value")
)

// Detect returns the format for path based on its extension.
func Detect(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "parquet":
		return FormatParquet, nil
	case "arrow", "ipc", "feather":
		return FormatArrow, nil
	case "csv":
		return FormatCSV, nil
	case "json", "jsonl", "ndjson":
		return FormatJSON, nil
	case "":
		return 0, fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	default:
		return 0, fmt.Errorf("%w: %q (supported: csv, parquet, arrow, ipc, feather, json, jsonl, ndjson)", ErrUnsupportedFormat, ext)
	}
}
