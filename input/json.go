package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/hupe1980/colbench/codec"
)

// loadJSON reads JSON lines or a top-level JSON array of rows. A row is an
// array of numbers or an object holding the vector.
func loadJSON(ctx context.Context, f *os.File, acc *accumulator) error {
	br := bufio.NewReaderSize(f, 1<<20)
	first, err := firstByte(br)
	if err != nil {
		return err
	}

	dec := codec.Default.NewDecoder(br)

	if first == '[' {
		// Either a single array of rows or JSON lines of arrays.
		var top []any
		if err := dec.Decode(&top); err != nil {
			return err
		}
		if len(top) > 0 && isRow(top[0]) {
			for _, row := range top {
				if err := addJSONRow(acc, row); err != nil {
					return err
				}
			}
			return expectEOF(dec)
		}
		if err := addJSONRow(acc, top); err != nil {
			return err
		}
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var row any
		if err := dec.Decode(&row); err != nil {
			return fmt.Errorf("line %d: %w", acc.rows+1, err)
		}
		if err := addJSONRow(acc, row); err != nil {
			return err
		}
	}
	return nil
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrNoVectors
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func expectEOF(dec codec.Decoder) error {
	if dec.More() {
		return errors.New("trailing data after top-level array")
	}
	return nil
}

func isRow(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

func addJSONRow(acc *accumulator, row any) error {
	vec, err := jsonVector(row)
	if err != nil {
		return fmt.Errorf("row %d: %w", acc.rows, err)
	}
	return acc.add(vec)
}

// jsonVector extracts a vector from a decoded row. Objects use a preferred
// vector field, then the only array field, then all numeric fields sorted by
// key.
func jsonVector(row any) ([]float32, error) {
	switch r := row.(type) {
	case []any:
		return jsonNumbers(r)
	case map[string]any:
		for _, name := range vectorNames {
			for k, v := range r {
				if strings.EqualFold(k, name) {
					if arr, ok := v.([]any); ok {
						return jsonNumbers(arr)
					}
					if v == nil {
						return nil, ErrNull
					}
				}
			}
		}

		var arrays []string
		var numbers []string
		for k, v := range r {
			switch v.(type) {
			case []any:
				arrays = append(arrays, k)
			case float64:
				if !slices.Contains(keyNames, strings.ToLower(k)) {
					numbers = append(numbers, k)
				}
			}
		}
		if len(arrays) == 1 {
			return jsonNumbers(r[arrays[0]].([]any))
		}
		if len(arrays) > 1 {
			return nil, fmt.Errorf("%w: ambiguous array fields %v", ErrNoVectors, arrays)
		}
		if len(numbers) == 0 {
			return nil, ErrNoVectors
		}
		sort.Strings(numbers)
		vec := make([]float32, len(numbers))
		for i, k := range numbers {
			vec[i] = float32(r[k].(float64))
		}
		return vec, nil
	case nil:
		return nil, ErrNull
	default:
		return nil, fmt.Errorf("%w: unexpected row type %T", ErrNoVectors, row)
	}
}

func jsonNumbers(arr []any) ([]float32, error) {
	vec := make([]float32, len(arr))
	for i, v := range arr {
		switch n := v.(type) {
		case float64:
			vec[i] = float32(n)
		case nil:
			return nil, ErrNull
		default:
			return nil, fmt.Errorf("element %d: unexpected %T", i, v)
		}
	}
	return vec, nil
}
