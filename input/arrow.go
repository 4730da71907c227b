package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/hupe1980/colbench/codec"
)

// Preferred column names, checked before falling back to the first candidate.
var vectorNames = []string{"vector", "embedding", "embeddings", "emb"}

// Key columns skipped when numeric columns form the vector.
var keyNames = []string{"id", "_id", "row_id", "rowid", "index"}

func loadParquet(ctx context.Context, f *os.File, o loadOptions, acc *accumulator) error {
	pf, err := file.NewParquetReader(f, file.WithReadProps(parquet.NewReaderProperties(o.mem)))
	if err != nil {
		return err
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: int64(o.chunkRows)}, o.mem)
	if err != nil {
		return err
	}

	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return err
	}
	defer rr.Release()

	return drain(ctx, rr, acc)
}

func loadArrow(ctx context.Context, f *os.File, o loadOptions, acc *accumulator) error {
	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(o.mem))
	if err == nil {
		defer fr.Close()
		for i := range fr.NumRecords() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := fr.Record(i)
			if err != nil {
				return err
			}
			if err := appendRecord(acc, rec); err != nil {
				return err
			}
		}
		return nil
	}

	// Not an IPC file; retry as an IPC stream.
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return serr
	}
	sr, serr := ipc.NewReader(f, ipc.WithAllocator(o.mem))
	if serr != nil {
		return fmt.Errorf("neither IPC file (%v) nor stream: %w", err, serr)
	}
	defer sr.Release()

	return drain(ctx, sr, acc)
}

func loadCSV(ctx context.Context, f *os.File, o loadOptions, acc *accumulator) error {
	r := csv.NewInferringReader(f,
		csv.WithHeader(true),
		csv.WithChunk(o.chunkRows),
		csv.WithAllocator(o.mem),
	)
	defer r.Release()

	return drain(ctx, r, acc)
}

func drain(ctx context.Context, rr array.RecordReader, acc *accumulator) error {
	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := appendRecord(acc, rr.Record()); err != nil {
			return err
		}
	}
	return rr.Err()
}

// appendRecord adds every row of rec to acc.
func appendRecord(acc *accumulator, rec arrow.Record) error {
	extract, err := extractor(rec.Schema())
	if err != nil {
		return err
	}

	var vec []float32
	for i := range int(rec.NumRows()) {
		vec, err = extract(rec, i, vec[:0])
		if err != nil {
			return fmt.Errorf("row %d: %w", acc.rows, err)
		}
		if err := acc.add(vec); err != nil {
			return err
		}
	}
	return nil
}

type extractFunc func(rec arrow.Record, row int, dst []float32) ([]float32, error)

// extractor picks the vector layout for schema: a numeric list column, a
// JSON-encoded string column, or all numeric columns.
func extractor(schema *arrow.Schema) (extractFunc, error) {
	fields := schema.Fields()

	var lists, strs, numeric []int
	for i, f := range fields {
		switch {
		case isNumericList(f.Type):
			lists = append(lists, i)
		case f.Type.ID() == arrow.STRING || f.Type.ID() == arrow.LARGE_STRING:
			strs = append(strs, i)
		case isNumeric(f.Type.ID()) && !slices.Contains(keyNames, strings.ToLower(f.Name)):
			numeric = append(numeric, i)
		}
	}

	if col, ok := pick(fields, lists, true); ok {
		return func(rec arrow.Record, row int, dst []float32) ([]float32, error) {
			return appendList(dst, rec.Column(col), row)
		}, nil
	}
	if col, ok := pick(fields, strs, false); ok {
		return func(rec arrow.Record, row int, dst []float32) ([]float32, error) {
			return appendJSONString(dst, rec.Column(col), row)
		}, nil
	}
	if len(numeric) > 0 {
		return func(rec arrow.Record, row int, dst []float32) ([]float32, error) {
			for _, col := range numeric {
				v, err := numberAt(rec.Column(col), row)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", fields[col].Name, err)
				}
				dst = append(dst, v)
			}
			return dst, nil
		}, nil
	}
	return nil, ErrNoVectors
}

// pick returns the first candidate with a preferred name, or the first
// candidate when anyName is set.
func pick(fields []arrow.Field, candidates []int, anyName bool) (int, bool) {
	for _, c := range candidates {
		if slices.Contains(vectorNames, strings.ToLower(fields[c].Name)) {
			return c, true
		}
	}
	if anyName && len(candidates) > 0 {
		return candidates[0], true
	}
	return 0, false
}

func isNumericList(dt arrow.DataType) bool {
	var elem arrow.DataType
	switch t := dt.(type) {
	case *arrow.ListType:
		elem = t.Elem()
	case *arrow.LargeListType:
		elem = t.Elem()
	case *arrow.FixedSizeListType:
		elem = t.Elem()
	default:
		return false
	}
	return isNumeric(elem.ID())
}

func isNumeric(id arrow.Type) bool {
	return arrow.IsInteger(id) || arrow.IsFloating(id)
}

func appendList(dst []float32, col arrow.Array, row int) ([]float32, error) {
	if col.IsNull(row) {
		return nil, ErrNull
	}
	list, ok := col.(array.ListLike)
	if !ok {
		return nil, fmt.Errorf("unexpected list array %T", col)
	}
	start, end := list.ValueOffsets(row)
	values := list.ListValues()
	for j := int(start); j < int(end); j++ {
		v, err := numberAt(values, j)
		if err != nil {
			return nil, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}

type stringArray interface {
	arrow.Array
	Value(i int) string
}

func appendJSONString(dst []float32, col arrow.Array, row int) ([]float32, error) {
	if col.IsNull(row) {
		return nil, ErrNull
	}
	s, ok := col.(stringArray)
	if !ok {
		return nil, fmt.Errorf("unexpected string array %T", col)
	}
	var vec []float32
	if err := codec.Default.Unmarshal([]byte(s.Value(row)), &vec); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	return append(dst, vec...), nil
}

func numberAt(arr arrow.Array, i int) (float32, error) {
	if arr.IsNull(i) {
		return 0, ErrNull
	}
	switch a := arr.(type) {
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return float32(a.Value(i)), nil
	case *array.Float16:
		return a.Value(i).Float32(), nil
	case *array.Int8:
		return float32(a.Value(i)), nil
	case *array.Int16:
		return float32(a.Value(i)), nil
	case *array.Int32:
		return float32(a.Value(i)), nil
	case *array.Int64:
		return float32(a.Value(i)), nil
	case *array.Uint8:
		return float32(a.Value(i)), nil
	case *array.Uint16:
		return float32(a.Value(i)), nil
	case *array.Uint32:
		return float32(a.Value(i)), nil
	case *array.Uint64:
		return float32(a.Value(i)), nil
	default:
		return 0, fmt.Errorf("unsupported element type %s", arr.DataType())
	}
}
