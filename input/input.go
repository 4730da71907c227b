package input

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/engine"
)

// DefaultChunkRows is the number of rows decoded per chunk while loading.
const DefaultChunkRows = 65536

// Input is a fully loaded dataset.
type Input struct {
	Path   string
	Format Format
	// FileSize is the size of the input file in bytes.
	FileSize int64
	Dim      int
	Rows     int64
	// Flat holds Rows*Dim values, row-major.
	Flat []float32
}

// MemoryBytes returns the in-memory size of the vectors.
func (in *Input) MemoryBytes() int64 { return int64(len(in.Flat)) * 4 }

// Source returns a BatchSource over the loaded vectors.
func (in *Input) Source(batchRows int) *engine.SliceSource {
	return engine.NewSliceSource(in.Dim, in.Flat, batchRows)
}

type loadOptions struct {
	mem       memory.Allocator
	chunkRows int
}

// Option configures Load.
type Option func(*loadOptions)

// WithAllocator sets the Arrow allocator used while decoding.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *loadOptions) { o.mem = mem }
}

// WithChunkRows sets the number of rows decoded at once.
func WithChunkRows(n int) Option {
	return func(o *loadOptions) {
		if n > 0 {
			o.chunkRows = n
		}
	}
}

// Load reads the file at path into memory.
func Load(ctx context.Context, path string, opts ...Option) (*Input, error) {
	o := loadOptions{mem: memory.DefaultAllocator, chunkRows: DefaultChunkRows}
	for _, opt := range opts {
		opt(&o)
	}

	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("input: %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	acc := &accumulator{}
	switch format {
	case FormatParquet:
		err = loadParquet(ctx, f, o, acc)
	case FormatArrow:
		err = loadArrow(ctx, f, o, acc)
	case FormatCSV:
		err = loadCSV(ctx, f, o, acc)
	case FormatJSON:
		err = loadJSON(ctx, f, acc)
	}
	if err != nil {
		return nil, fmt.Errorf("input: load %s: %w", path, err)
	}
	if acc.rows == 0 {
		return nil, fmt.Errorf("input: load %s: %w", path, ErrNoVectors)
	}

	return &Input{
		Path:     path,
		Format:   format,
		FileSize: fi.Size(),
		Dim:      acc.dim,
		Rows:     acc.rows,
		Flat:     acc.flat,
	}, nil
}

// accumulator collects rows of equal dimension.
type accumulator struct {
	dim  int
	rows int64
	flat []float32
}

func (a *accumulator) add(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector at row %d", ErrNoVectors, a.rows)
	}
	if a.rows == 0 {
		a.dim = len(vec)
	} else if len(vec) != a.dim {
		return fmt.Errorf("%w: row %d has %d, want %d", ErrRagged, a.rows, len(vec), a.dim)
	}
	a.flat = append(a.flat, vec...)
	a.rows++
	return nil
}
