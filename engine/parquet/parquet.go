// Package parquet implements the "parquet" and "parquet-async" engines on
// parquet-go.
//
// Vectors are stored as a LIST<float> column named "vector". The synchronous
// engine reads the row groups touched by a take one after another. The async
// engine opens files in parquet-go's async read mode, which prefetches pages,
// and reads the touched row groups concurrently.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/selection"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/lz4"
	"github.com/parquet-go/parquet-go/compress/snappy"
	"github.com/parquet-go/parquet-go/compress/uncompressed"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"golang.org/x/sync/errgroup"
)

const (
	// Extension is the file extension of parquet datasets.
	Extension = "parquet"

	// DefaultRowGroupRows is the number of rows per row group.
	DefaultRowGroupRows = 16 * 1024

	dimKey    = "colbench.dim"
	readBatch = 256
)

type vectorRow struct {
	Vector []float32 `parquet:"vector,list"`
}

// Engine stores datasets as parquet files.
type Engine struct {
	async        bool
	stores       *engine.Stores
	rowGroupRows int64
	codec        compress.Codec
}

// Option configures an Engine.
type Option func(*Engine)

// WithAsync enables async page reads and concurrent row group reads.
func WithAsync() Option {
	return func(e *Engine) { e.async = true }
}

// WithRowGroupRows sets the number of rows per row group.
func WithRowGroupRows(n int64) Option {
	return func(e *Engine) { e.rowGroupRows = n }
}

// WithCompression selects the page codec: none, snappy, lz4 or zstd.
func WithCompression(name string) Option {
	return func(e *Engine) {
		if c, err := Codec(name); err == nil {
			e.codec = c
		}
	}
}

// Codec returns the parquet page codec with the given name.
func Codec(name string) (compress.Codec, error) {
	switch name {
	case "", "none", "uncompressed":
		return &uncompressed.Codec{}, nil
	case "snappy":
		return &snappy.Codec{}, nil
	case "lz4":
		return &lz4.Codec{}, nil
	case "zstd":
		return &zstd.Codec{}, nil
	default:
		return nil, fmt.Errorf("parquet: unknown compression %q", name)
	}
}

// New creates a parquet engine.
func New(stores *engine.Stores, opts ...Option) *Engine {
	e := &Engine{
		stores:       stores,
		rowGroupRows: DefaultRowGroupRows,
		codec:        &snappy.Codec{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "parquet" or "parquet-async".
func (e *Engine) Name() string {
	if e.async {
		return "parquet-async"
	}
	return "parquet"
}

func (e *Engine) fileOptions() []parquet.FileOption {
	mode := parquet.ReadModeSync
	if e.async {
		mode = parquet.ReadModeAsync
	}
	return []parquet.FileOption{
		parquet.SkipBloomFilters(true),
		parquet.FileReadMode(mode),
	}
}

func (e *Engine) openFile(ctx context.Context, uri string) (blobstore.Blob, *parquet.File, error) {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return nil, nil, engine.NewError("open", e.Name(), uri, engine.KindInvalid, err)
	}
	blob, err := store.Open(ctx, engine.DataFile(Extension))
	if err != nil {
		return nil, nil, engine.NewError("open", e.Name(), uri, engine.ClassifyIO(err), err)
	}
	f, err := parquet.OpenFile(blob, blob.Size(), e.fileOptions()...)
	if err != nil {
		_ = blob.Close()
		return nil, nil, engine.NewError("open", e.Name(), uri, engine.KindFormat, err)
	}
	return blob, f, nil
}

// Exists reports whether a parquet dataset with expectedRows rows is present.
func (e *Engine) Exists(ctx context.Context, uri string, expectedRows int64) bool {
	blob, f, err := e.openFile(ctx, uri)
	if err != nil {
		return false
	}
	defer blob.Close()
	return expectedRows < 0 || f.NumRows() == expectedRows
}

// Open opens an existing dataset.
func (e *Engine) Open(ctx context.Context, uri string) (engine.Handle, error) {
	blob, f, err := e.openFile(ctx, uri)
	if err != nil {
		return nil, err
	}

	dim, err := fileDim(f)
	if err != nil {
		_ = blob.Close()
		return nil, engine.NewError("open", e.Name(), uri, engine.KindFormat, err)
	}

	h := &handle{
		name:   e.Name(),
		uri:    uri,
		async:  e.async,
		blob:   blob,
		file:   f,
		dim:    dim,
		groups: f.RowGroups(),
		mem:    memory.DefaultAllocator,
	}
	var start int64
	for _, g := range h.groups {
		h.starts = append(h.starts, start)
		start += g.NumRows()
	}
	h.rows = start
	return h, nil
}

func fileDim(f *parquet.File) (int, error) {
	v, ok := f.Lookup(dimKey)
	if !ok {
		return 0, fmt.Errorf("parquet: missing %q metadata", dimKey)
	}
	dim, err := strconv.Atoi(v)
	if err != nil || dim <= 0 {
		return 0, fmt.Errorf("parquet: invalid dimension %q", v)
	}
	for _, field := range f.Schema().Fields() {
		if field.Name() == engine.VectorColumn {
			return dim, nil
		}
	}
	return 0, errors.New("parquet: missing vector column")
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
	blob, err := store.Create(ctx, engine.DataFile(Extension))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = blob.Abort()
		}
	}()

	w := parquet.NewGenericWriter[vectorRow](blob,
		parquet.Compression(e.codec),
		parquet.MaxRowsPerRowGroup(e.rowGroupRows),
		parquet.KeyValueMetadata(dimKey, strconv.Itoa(dim)),
	)

	var rows []vectorRow
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

		rows = rows[:0]
		for i := 0; i < len(batch); i += dim {
			rows = append(rows, vectorRow{Vector: batch[i : i+dim]})
		}
		if _, err := w.Write(rows); err != nil {
			return err
		}
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
	name   string
	uri    string
	async  bool
	blob   blobstore.Blob
	file   *parquet.File
	dim    int
	rows   int64
	groups []parquet.RowGroup
	starts []int64
	mem    memory.Allocator
}

func (h *handle) NumRows() int64 { return h.rows }
func (h *handle) Size() int64    { return h.blob.Size() }
func (h *handle) Close() error   { return h.blob.Close() }

// groupRanges are the row ranges of one row group, relative to its start.
type groupRanges struct {
	group  int
	ranges []selection.Range
}

// split assigns absolute ranges to row groups.
func (h *handle) split(ranges []selection.Range) []groupRanges {
	var out []groupRanges
	g := 0
	for _, r := range ranges {
		for start := r.Start; start < r.End; {
			for g+1 < len(h.starts) && uint64(h.starts[g+1]) <= start { //nolint:gosec
				g++
			}
			base := uint64(h.starts[g])                      //nolint:gosec
			end := min(r.End, base+uint64(h.groups[g].NumRows())) //nolint:gosec

			if n := len(out); n == 0 || out[n-1].group != g {
				out = append(out, groupRanges{group: g})
			}
			last := &out[len(out)-1]
			last.ranges = append(last.ranges, selection.Range{Start: start - base, End: end - base})
			start = end
		}
	}
	return out
}

func (h *handle) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	rec, err := h.take(ctx, indices)
	if err != nil {
		return nil, engine.NewError("take", h.name, h.uri, engine.ClassifyTake(err), err)
	}
	return rec, nil
}

func (h *handle) take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	sel, err := selection.FromIndices(indices, uint64(h.rows)) //nolint:gosec
	if err != nil {
		return nil, err
	}
	parts := h.split(sel.Ranges())

	results := make([][]float32, len(parts))
	if h.async && len(parts) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, p := range parts {
			g.Go(func() error {
				var err error
				results[i], err = h.readGroup(gctx, p, nil)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, p := range parts {
			if results[i], err = h.readGroup(ctx, p, nil); err != nil {
				return nil, err
			}
		}
	}

	out := make([]float32, 0, int(sel.Selected())*h.dim) //nolint:gosec
	for _, r := range results {
		out = append(out, r...)
	}
	return engine.NewRecord(h.mem, h.dim, out), nil
}

// readGroup reads the ranges of one row group and appends the vectors to out.
func (h *handle) readGroup(ctx context.Context, p groupRanges, out []float32) ([]float32, error) {
	r := parquet.NewGenericRowGroupReader[vectorRow](h.groups[p.group])
	defer r.Close()

	buf := make([]vectorRow, readBatch)
	for _, rg := range p.ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.SeekToRow(int64(rg.Start)); err != nil { //nolint:gosec
			return nil, err
		}
		var err error
		if out, err = h.readRows(r, buf, int(rg.Len()), out); err != nil { //nolint:gosec
			return nil, err
		}
	}
	return out, nil
}

func (h *handle) readRows(r *parquet.GenericReader[vectorRow], buf []vectorRow, n int, out []float32) ([]float32, error) {
	for n > 0 {
		k, err := r.Read(buf[:min(n, len(buf))])
		for _, row := range buf[:k] {
			if len(row.Vector) != h.dim {
				return nil, fmt.Errorf("parquet: row has %d values, want %d", len(row.Vector), h.dim)
			}
			out = append(out, row.Vector...)
		}
		n -= k
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				break
			}
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if k == 0 {
			return nil, io.ErrNoProgress
		}
	}
	return out, nil
}

func (h *handle) Scan(ctx context.Context) (int64, error) {
	n, err := h.scan(ctx)
	if err != nil {
		return n, engine.NewError("scan", h.name, h.uri, engine.KindIO, err)
	}
	return n, nil
}

func (h *handle) scan(ctx context.Context) (int64, error) {
	counts := make([]int64, len(h.groups))
	scanGroup := func(ctx context.Context, i int) error {
		r := parquet.NewGenericRowGroupReader[vectorRow](h.groups[i])
		defer r.Close()

		buf := make([]vectorRow, readBatch)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			k, err := r.Read(buf)
			counts[i] += int64(k)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	if h.async {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range h.groups {
			g.Go(func() error { return scanGroup(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	} else {
		for i := range h.groups {
			if err := scanGroup(ctx, i); err != nil {
				return 0, err
			}
		}
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return total, nil
}
