// Package selection converts sparse row-index queries into run-length
// row selections.
//
// A Selection is an ordered list of Skip and Select runs whose lengths sum to
// the total number of rows in a dataset. Backends walk the runs with their
// native skip/read primitives, so the cost of a lookup grows with the number
// of runs rather than the number of selected rows.
package selection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsorted is returned when indices are not in ascending order.
	ErrUnsorted = errors.New("selection: indices are not sorted ascending")

	// ErrOutOfRange is returned when an index is not smaller than the total row count.
	ErrOutOfRange = errors.New("selection: index out of range")
)

// Kind is the type of a run.
type Kind uint8

const (
	// Skip advances past rows without reading them.
	Skip Kind = iota
	// Select reads rows.
	Select
)

func (k Kind) String() string {
	switch k {
	case Skip:
		return "skip"
	case Select:
		return "select"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Run is a run of consecutive rows of the same kind.
type Run struct {
	Kind   Kind
	Length uint64
}

func (r Run) String() string {
	if r.Kind == Select {
		return fmt.Sprintf("Select(%d)", r.Length)
	}
	return fmt.Sprintf("Skip(%d)", r.Length)
}

// Range is a half-open interval [Start, End) of selected rows.
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of rows in the range.
func (r Range) Len() uint64 { return r.End - r.Start }

// Selection is an ordered sequence of runs.
//
// Runs never have zero length and two neighbouring runs never share a kind.
type Selection []Run

// FromIndices builds a selection from ascending row indices.
//
// Adjacent indices are merged into a single Select run and repeated indices
// are selected once. An empty index list yields a single Skip over all rows.
func FromIndices(indices []uint64, totalRows uint64) (Selection, error) {
	sel := make(Selection, 0, 2*len(indices)+1)

	var pos uint64
	for i, idx := range indices {
		if idx >= totalRows {
			return nil, fmt.Errorf("%w: indices[%d]=%d, total rows %d", ErrOutOfRange, i, idx, totalRows)
		}
		if i > 0 {
			prev := indices[i-1]
			if idx < prev {
				return nil, fmt.Errorf("%w: indices[%d]=%d < indices[%d]=%d", ErrUnsorted, i, idx, i-1, prev)
			}
			if idx == prev {
				continue
			}
		}
		if idx > pos {
			sel = sel.push(Skip, idx-pos)
		}
		sel = sel.push(Select, 1)
		pos = idx + 1
	}

	if pos < totalRows {
		sel = sel.push(Skip, totalRows-pos)
	}

	return sel, nil
}

// push appends a run, extending the last run when the kinds match.
func (s Selection) push(kind Kind, n uint64) Selection {
	if last := len(s) - 1; last >= 0 && s[last].Kind == kind {
		s[last].Length += n
		return s
	}
	return append(s, Run{Kind: kind, Length: n})
}

// Rows returns the total number of rows spanned by the selection.
func (s Selection) Rows() uint64 {
	var n uint64
	for _, r := range s {
		n += r.Length
	}
	return n
}

// Selected returns the number of selected rows.
func (s Selection) Selected() uint64 {
	var n uint64
	for _, r := range s {
		if r.Kind == Select {
			n += r.Length
		}
	}
	return n
}

// Runs returns the number of runs.
func (s Selection) Runs() int { return len(s) }

// Empty reports whether the selection reads no rows.
func (s Selection) Empty() bool { return s.Selected() == 0 }

// Ranges returns the selected rows as absolute half-open ranges.
func (s Selection) Ranges() []Range {
	ranges := make([]Range, 0, len(s)/2+1)

	var pos uint64
	for _, r := range s {
		if r.Kind == Select {
			ranges = append(ranges, Range{Start: pos, End: pos + r.Length})
		}
		pos += r.Length
	}
	return ranges
}

// Indices expands the selection back into the ascending list of selected rows.
func (s Selection) Indices() []uint64 {
	out := make([]uint64, 0, s.Selected())
	for _, r := range s.Ranges() {
		for i := r.Start; i < r.End; i++ {
			out = append(out, i)
		}
	}
	return out
}

func (s Selection) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, r := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
