// Package columnar implements a block-addressed vector file format and the
// "columnar" family of engines.
//
// Vectors are stored row-major in fixed-size blocks of rows. Every block is
// optionally compressed (lz4, zstd or snappy); blocks that do not shrink are
// stored raw. A footer and a block index at the end of the file make every
// row addressable with one read for raw blocks and one block decode for
// compressed blocks.
package columnar

import (
	"context"
	"errors"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/internal/compress"
)

// Extension is the file extension of columnar datasets.
const Extension = "colv"

// DefaultBlockBytes is the target uncompressed block size.
const DefaultBlockBytes = 64 << 10

// Engine stores datasets in the columnar format.
type Engine struct {
	name       string
	codec      compress.Codec
	stores     *engine.Stores
	blockRows  int
	blockBytes int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCodec selects the block codec. The engine is named
// "columnar-<codec>" for every codec other than none.
func WithCodec(c compress.Codec) Option {
	return func(e *Engine) { e.codec = c }
}

// WithBlockRows fixes the number of rows per block.
func WithBlockRows(n int) Option {
	return func(e *Engine) { e.blockRows = n }
}

// WithBlockBytes sets the target uncompressed block size used when the
// number of rows per block is derived from the vector dimension.
func WithBlockBytes(n int) Option {
	return func(e *Engine) { e.blockBytes = n }
}

// New creates a columnar engine.
func New(stores *engine.Stores, opts ...Option) *Engine {
	e := &Engine{
		stores:     stores,
		blockBytes: DefaultBlockBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		e.codec, _ = compress.ByID(compress.None)
	}

	e.name = "columnar"
	if id := e.codec.ID(); id != compress.None {
		e.name += "-" + id.String()
	}
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

func (e *Engine) rowsPerBlock(dim int) int {
	if e.blockRows > 0 {
		return e.blockRows
	}
	return max(1, e.blockBytes/(dim*4))
}

// Exists reports whether a valid dataset with expectedRows rows is present.
func (e *Engine) Exists(ctx context.Context, uri string, expectedRows int64) bool {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return false
	}
	blob, err := store.Open(ctx, engine.DataFile(Extension))
	if err != nil {
		return false
	}
	defer blob.Close()

	footer, err := ReadFooter(blob)
	if err != nil {
		return false
	}
	return expectedRows < 0 || int64(footer.Count) == expectedRows //nolint:gosec
}

// Open opens an existing dataset.
func (e *Engine) Open(ctx context.Context, uri string) (engine.Handle, error) {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return nil, engine.NewError("open", e.name, uri, engine.KindInvalid, err)
	}
	blob, err := store.Open(ctx, engine.DataFile(Extension))
	if err != nil {
		return nil, engine.NewError("open", e.name, uri, engine.ClassifyIO(err), err)
	}
	r, err := NewReader(blob)
	if err != nil {
		_ = blob.Close()
		return nil, engine.NewError("open", e.name, uri, engine.KindFormat, err)
	}
	return &handle{Reader: r, name: e.name, uri: uri}, nil
}

// Write materializes src, replacing any existing dataset.
func (e *Engine) Write(ctx context.Context, uri string, src engine.BatchSource) (engine.Handle, error) {
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return nil, engine.NewError("write", e.name, uri, engine.KindInvalid, err)
	}
	if err := e.write(ctx, store, src); err != nil {
		return nil, engine.NewError("write", e.name, uri, engine.KindIO, err)
	}
	return e.Open(ctx, uri)
}

func (e *Engine) write(ctx context.Context, store blobstore.Store, src engine.BatchSource) (err error) {
	blob, err := store.Create(ctx, engine.DataFile(Extension))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = blob.Abort()
		}
	}()

	w, err := NewWriter(blob, src.Dim(), e.rowsPerBlock(src.Dim()), e.codec)
	if err != nil {
		return err
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
		if err := w.Write(batch); err != nil {
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
		return engine.NewError("drop cache", e.name, uri, engine.KindInvalid, err)
	}
	if _, err := engine.DropStoreCache(ctx, store); err != nil {
		return engine.NewError("drop cache", e.name, uri, engine.KindIO, err)
	}
	return nil
}

type handle struct {
	*Reader
	name string
	uri  string
}

func (h *handle) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	rec, err := h.Reader.Take(ctx, indices)
	if err != nil {
		return nil, engine.NewError("take", h.name, h.uri, engine.ClassifyTake(err), err)
	}
	return rec, nil
}

func (h *handle) Scan(ctx context.Context) (int64, error) {
	n, err := h.Reader.Scan(ctx)
	if err != nil {
		return n, engine.NewError("scan", h.name, h.uri, engine.KindIO, err)
	}
	return n, nil
}
