// Package arrowipc implements the "arrow" engine: datasets stored as Arrow
// IPC files made of fixed-size record batches.
//
// Every batch except the last holds exactly the batch row count recorded in
// the schema metadata, so a row index maps to its batch without reading any
// batch headers. IPC readers are not safe for concurrent use; handles keep a
// pool of them over the shared blob.
package arrowipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/selection"
)

const (
	// Extension is the file extension of arrow datasets.
	Extension = "arrow"

	// DefaultBatchRows is the number of rows per record batch.
	DefaultBatchRows = 1024

	batchRowsKey = "colbench.batch_rows"
)

// Compression selects the IPC body compression.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
)

// Engine stores datasets as Arrow IPC files.
type Engine struct {
	stores      *engine.Stores
	batchRows   int
	compression Compression
	mem         memory.Allocator
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchRows sets the number of rows per record batch.
func WithBatchRows(n int) Option {
	return func(e *Engine) { e.batchRows = n }
}

// WithCompression selects the IPC body compression.
func WithCompression(c Compression) Option {
	return func(e *Engine) { e.compression = c }
}

// WithAllocator sets the allocator used for records.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Engine) { e.mem = mem }
}

// New creates an arrow engine.
func New(stores *engine.Stores, opts ...Option) *Engine {
	e := &Engine{
		stores:    stores,
		batchRows: DefaultBatchRows,
		mem:       memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "arrow".
func (e *Engine) Name() string { return "arrow" }

// Exists reports whether an arrow dataset with expectedRows rows is present.
func (e *Engine) Exists(ctx context.Context, uri string, expectedRows int64) bool {
	h, err := e.Open(ctx, uri)
	if err != nil {
		return false
	}
	defer h.Close()
	return expectedRows < 0 || h.NumRows() == expectedRows
}

// Open opens an existing dataset.
func (e *Engine) Open(ctx context.Context, uri string) (engine.Handle, error) {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return nil, engine.NewError("open", e.Name(), uri, engine.KindInvalid, err)
	}
	blob, err := store.Open(ctx, engine.DataFile(Extension))
	if err != nil {
		return nil, engine.NewError("open", e.Name(), uri, engine.ClassifyIO(err), err)
	}

	h, err := newHandle(blob, e.mem)
	if err != nil {
		_ = blob.Close()
		return nil, engine.NewError("open", e.Name(), uri, engine.KindFormat, err)
	}
	h.uri = uri
	return h, nil
}

// Write materializes src, replacing any existing dataset.
func (e *Engine) Write(ctx context.Context, uri string, src engine.BatchSource) (engine.Handle, error) {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return nil, engine.NewError("write", e.Name(), uri, engine.KindInvalid, err)
	}
	if err := e.write(ctx, store, src); err != nil {
		return nil, engine.NewError("write", e.Name(), uri, engine.KindIO, err)
	}
	return e.Open(ctx, uri)
}

func (e *Engine) write(ctx context.Context, store blobstore.Store, src engine.BatchSource) (err error) {
	dim := src.Dim()
	if dim <= 0 {
		return fmt.Errorf("arrowipc: invalid dimension %d", dim)
	}
	md := arrow.NewMetadata([]string{batchRowsKey}, []string{strconv.Itoa(e.batchRows)})
	schema := arrow.NewSchema(engine.VectorSchema(dim).Fields(), &md)

	blob, err := store.Create(ctx, engine.DataFile(Extension))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = blob.Abort()
		}
	}()

	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(e.mem)}
	switch e.compression {
	case CompressionLZ4:
		opts = append(opts, ipc.WithLZ4())
	case CompressionZstd:
		opts = append(opts, ipc.WithZstd())
	}
	w, err := ipc.NewFileWriter(blob, opts...)
	if err != nil {
		return err
	}

	batchValues := e.batchRows * dim
	pending := make([]float32, 0, batchValues)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		rec := engine.NewRecordWithSchema(e.mem, schema, pending)
		defer rec.Release()
		pending = pending[:0]
		return w.Write(rec)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := engine.CheckBatch(batch, dim); err != nil {
			return err
		}
		for len(batch) > 0 {
			n := min(batchValues-len(pending), len(batch))
			pending = append(pending, batch[:n]...)
			batch = batch[n:]
			if len(pending) == batchValues {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return blob.Close()
}

// DropCache evicts the dataset from the page cache and block cache.
func (e *Engine) DropCache(ctx context.Context, uri string) error {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return engine.NewError("drop cache", e.Name(), uri, engine.KindInvalid, err)
	}
	if _, err := engine.DropStoreCache(ctx, store); err != nil {
		return engine.NewError("drop cache", e.Name(), uri, engine.KindIO, err)
	}
	return nil
}

type handle struct {
	uri       string
	blob      blobstore.Blob
	mem       memory.Allocator
	dim       int
	batchRows int
	batches   int
	rows      int64

	mu      sync.Mutex
	free    []*ipc.FileReader
	readers []*ipc.FileReader
}

// newHandle reads the schema and row count. On error the caller still owns
// blob; readers opened here are closed.
func newHandle(blob blobstore.Blob, mem memory.Allocator) (*handle, error) {
	h := &handle{blob: blob, mem: mem}

	r, err := h.reader()
	if err != nil {
		return nil, err
	}
	err = h.load(r)
	h.release(r)
	if err != nil {
		_ = h.closeReaders()
		return nil, err
	}
	return h, nil
}

func (h *handle) load(r *ipc.FileReader) error {
	schema := r.Schema()
	if schema.NumFields() != 1 || schema.Field(0).Name != engine.VectorColumn {
		return fmt.Errorf("arrowipc: unexpected schema %s", schema)
	}
	fsl, ok := schema.Field(0).Type.(*arrow.FixedSizeListType)
	if !ok {
		return fmt.Errorf("arrowipc: vector column has type %s", schema.Field(0).Type)
	}
	h.dim = int(fsl.Len())

	md := schema.Metadata()
	idx := md.FindKey(batchRowsKey)
	if idx < 0 {
		return fmt.Errorf("arrowipc: missing %q metadata", batchRowsKey)
	}
	batchRows, err := strconv.Atoi(md.Values()[idx])
	if err != nil || batchRows <= 0 {
		return fmt.Errorf("arrowipc: invalid batch rows %q", md.Values()[idx])
	}
	h.batchRows = batchRows

	h.batches = r.NumRecords()
	if h.batches > 0 {
		last, err := r.RecordAt(h.batches - 1)
		if err != nil {
			return err
		}
		h.rows = int64(h.batches-1)*int64(h.batchRows) + last.NumRows()
		last.Release()
	}
	return nil
}

// reader returns an idle IPC reader, opening a new one if none is free.
func (h *handle) reader() (*ipc.FileReader, error) {
	h.mu.Lock()
	if n := len(h.free); n > 0 {
		r := h.free[n-1]
		h.free = h.free[:n-1]
		h.mu.Unlock()
		return r, nil
	}
	h.mu.Unlock()

	r, err := ipc.NewFileReader(io.NewSectionReader(h.blob, 0, h.blob.Size()), ipc.WithAllocator(h.mem))
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.readers = append(h.readers, r)
	h.mu.Unlock()
	return r, nil
}

func (h *handle) release(r *ipc.FileReader) {
	h.mu.Lock()
	h.free = append(h.free, r)
	h.mu.Unlock()
}

func (h *handle) NumRows() int64 { return h.rows }
func (h *handle) Size() int64    { return h.blob.Size() }

func (h *handle) Close() error {
	return errors.Join(h.closeReaders(), h.blob.Close())
}

func (h *handle) closeReaders() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, r := range h.readers {
		errs = append(errs, r.Close())
	}
	h.readers, h.free = nil, nil
	return errors.Join(errs...)
}

func (h *handle) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	rec, err := h.take(ctx, indices)
	if err != nil {
		return nil, engine.NewError("take", "arrow", h.uri, engine.ClassifyTake(err), err)
	}
	return rec, nil
}

func (h *handle) take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	sel, err := selection.FromIndices(indices, uint64(h.rows)) //nolint:gosec
	if err != nil {
		return nil, err
	}

	r, err := h.reader()
	if err != nil {
		return nil, err
	}
	defer h.release(r)

	out := make([]float32, 0, int(sel.Selected())*h.dim) //nolint:gosec
	batchRows := uint64(h.batchRows)                       //nolint:gosec

	var (
		cached = -1
		values []float32
	)

	for _, rg := range sel.Ranges() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for row := rg.Start; row < rg.End; {
			b := int(row / batchRows) //nolint:gosec
			base := uint64(b) * batchRows
			end := min(rg.End, base+batchRows)

			if cached != b {
				rec, err := r.RecordAt(b)
				if err != nil {
					return nil, err
				}
				values, _, err = engine.Vectors(rec)
				rec.Release()
				if err != nil {
					return nil, err
				}
				cached = b
			}

			lo := int(row-base) * h.dim //nolint:gosec
			hi := int(end-base) * h.dim //nolint:gosec
			if hi > len(values) {
				return nil, fmt.Errorf("arrowipc: batch %d is shorter than %d rows", b, hi/h.dim)
			}
			out = append(out, values[lo:hi]...)
			row = end
		}
	}
	return engine.NewRecord(h.mem, h.dim, out), nil
}

func (h *handle) Scan(ctx context.Context) (int64, error) {
	r, err := h.reader()
	if err != nil {
		return 0, engine.NewError("scan", "arrow", h.uri, engine.KindFormat, err)
	}
	defer h.release(r)

	var rows int64
	for i := range h.batches {
		if err := ctx.Err(); err != nil {
			return rows, engine.NewError("scan", "arrow", h.uri, engine.KindIO, err)
		}
		rec, err := r.RecordAt(i)
		if err != nil {
			return rows, engine.NewError("scan", "arrow", h.uri, engine.KindIO, err)
		}
		rows += rec.NumRows()
		rec.Release()
	}
	return rows, nil
}
