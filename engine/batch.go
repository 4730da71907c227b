package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// VectorColumn is the name of the projected column.
const VectorColumn = "vector"

// VectorType returns the Arrow type of a vector column of dimension dim.
func VectorType(dim int) arrow.DataType {
	return arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32) //nolint:gosec
}

// VectorSchema returns the single-column schema shared by all engines.
func VectorSchema(dim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: VectorColumn, Type: VectorType(dim)},
	}, nil)
}

// NewRecord builds a record from flat row-major vectors.
func NewRecord(mem memory.Allocator, dim int, flat []float32) arrow.Record {
	return NewRecordWithSchema(mem, VectorSchema(dim), flat)
}

// NewRecordWithSchema builds a record for a vector schema that may carry
// metadata. The dimension is taken from the schema.
func NewRecordWithSchema(mem memory.Allocator, schema *arrow.Schema, flat []float32) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	lb := b.Field(0).(*array.FixedSizeListBuilder)
	vb := lb.ValueBuilder().(*array.Float32Builder)
	dim := int(schema.Field(0).Type.(*arrow.FixedSizeListType).Len())

	rows := 0
	if dim > 0 {
		rows = len(flat) / dim
	}
	lb.Reserve(rows)
	vb.Reserve(rows * dim)
	for i := range rows {
		lb.Append(true)
		vb.AppendValues(flat[i*dim:(i+1)*dim], nil)
	}
	return b.NewRecord()
}

// Vectors copies the vector column of rec into a flat row-major slice.
func Vectors(rec arrow.Record) ([]float32, int, error) {
	if rec.NumCols() != 1 {
		return nil, 0, fmt.Errorf("engine: record has %d columns, want 1", rec.NumCols())
	}
	col, ok := rec.Column(0).(*array.FixedSizeList)
	if !ok {
		return nil, 0, fmt.Errorf("engine: column %q has type %s", rec.ColumnName(0), rec.Column(0).DataType())
	}
	values, ok := col.ListValues().(*array.Float32)
	if !ok {
		return nil, 0, fmt.Errorf("engine: list values have type %s", col.ListValues().DataType())
	}

	dim := int(col.DataType().(*arrow.FixedSizeListType).Len())
	out := make([]float32, 0, col.Len()*dim)
	raw := values.Float32Values()
	for i := range col.Len() {
		start, end := col.ValueOffsets(i)
		out = append(out, raw[start:end]...)
	}
	return out, dim, nil
}

// SliceSource is a BatchSource over an in-memory flat slice.
type SliceSource struct {
	dim       int
	data      []float32
	batchRows int
	pos       int
}

// NewSliceSource returns a source yielding batches of at most batchRows rows.
func NewSliceSource(dim int, flat []float32, batchRows int) *SliceSource {
	if batchRows <= 0 {
		batchRows = 1
	}
	return &SliceSource{dim: dim, data: flat, batchRows: batchRows}
}

func (s *SliceSource) Dim() int { return s.dim }

func (s *SliceSource) NumRows() int64 {
	if s.dim == 0 {
		return 0
	}
	return int64(len(s.data) / s.dim)
}

func (s *SliceSource) Next() ([]float32, error) {
	if s.pos >= len(s.data) {
		return nil, io.EOF
	}
	end := min(s.pos+s.batchRows*s.dim, len(s.data))
	out := s.data[s.pos:end]
	s.pos = end
	return out, nil
}

// ReadAll drains src into a single flat slice.
func ReadAll(src BatchSource) ([]float32, error) {
	out := make([]float32, 0, src.NumRows()*int64(src.Dim()))
	for {
		batch, err := src.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
}

// CheckBatch validates a batch against the source dimension.
func CheckBatch(batch []float32, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("engine: invalid dimension %d", dim)
	}
	if len(batch)%dim != 0 {
		return fmt.Errorf("engine: batch of %d values is not a multiple of dimension %d", len(batch), dim)
	}
	return nil
}
