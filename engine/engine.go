package engine

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Engine is a storage backend.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string
	// Exists reports whether a dataset is present at uri with exactly
	// expectedRows rows. A negative expectedRows accepts any row count.
	// Exists never fails; unreadable datasets are reported as absent.
	Exists(ctx context.Context, uri string, expectedRows int64) bool
	// Open loads dataset metadata and returns a handle.
	Open(ctx context.Context, uri string) (Handle, error)
	// Write materializes src at uri, replacing any existing dataset,
	// and returns a handle equivalent to Open.
	Write(ctx context.Context, uri string, src BatchSource) (Handle, error)
	// DropCache evicts the dataset from OS and in-process caches.
	// Failures are advisory.
	DropCache(ctx context.Context, uri string) error
}

// Handle is an open dataset. All methods are safe for concurrent use.
type Handle interface {
	// Take returns the rows at indices, which must be sorted ascending.
	// Duplicates are returned once; rows come back in storage order.
	Take(ctx context.Context, indices []uint64) (arrow.Record, error)
	// Scan reads every vector and returns the number of rows read.
	Scan(ctx context.Context) (int64, error)
	// NumRows returns the persisted row count.
	NumRows() int64
	// Size returns the on-storage size of the dataset in bytes.
	Size() int64
	// Close releases the handle.
	Close() error
}

// BatchSource yields the vectors of a dataset in row order.
type BatchSource interface {
	// Dim returns the vector dimensionality.
	Dim() int
	// NumRows returns the total number of rows the source yields.
	NumRows() int64
	// Next returns the next batch as a flat row-major slice of
	// rows*Dim() values, or io.EOF when exhausted.
	Next() ([]float32, error)
}
