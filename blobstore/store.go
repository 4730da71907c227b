package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	// Close commits the blob.
	Close() error
	// Abort discards everything written so far.
	Abort() error
}

// Mappable is implemented by blobs backed by a memory mapping.
type Mappable interface {
	// Bytes returns the mapped contents, valid until the blob is closed.
	Bytes() ([]byte, error)
}

// Locator is implemented by stores that keep blobs on the local filesystem.
type Locator interface {
	// Path returns the filesystem path of name.
	Path(name string) string
}

// CacheStats describes the outcome of a cache eviction.
type CacheStats struct {
	Files   int
	Bytes   int64
	Missing bool
}

// CacheDropper is implemented by stores that can evict cached data.
type CacheDropper interface {
	// DropCache evicts cached data for all blobs with the given prefix.
	DropCache(ctx context.Context, prefix string) (CacheStats, error)
}

// DropCache evicts cached data of store if it supports it.
// Stores without a cache report zero stats and no error.
func DropCache(ctx context.Context, store Store, prefix string) (CacheStats, error) {
	if d, ok := store.(CacheDropper); ok {
		return d.DropCache(ctx, prefix)
	}
	return CacheStats{}, nil
}

// Exists reports whether a blob is present and returns its size.
func Exists(ctx context.Context, store Store, name string) (int64, bool) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return 0, false
	}
	defer b.Close()
	return b.Size(), true
}

// Put writes data as a single blob.
func Put(ctx context.Context, store Store, name string, data []byte) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Close()
}
