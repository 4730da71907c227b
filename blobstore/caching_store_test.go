package blobstore

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/colbench/internal/cache"
	"github.com/stretchr/testify/require"
)

// countingStore counts ReadAt calls that reach the backend.
type countingStore struct {
	Store
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, reads: &s.reads}, nil
}

type countingBlob struct {
	Blob
	reads *atomic.Int64
}

func (b *countingBlob) ReadAt(p []byte, off int64) (int, error) {
	b.reads.Add(1)
	return b.Blob.ReadAt(p, off)
}

func newTestData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func TestCachingStore_ReadAt(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	data := newTestData(10_000)
	require.NoError(t, Put(ctx, mem, "data.parquet", data))

	inner := &countingStore{Store: mem}
	store := NewCachingStore(inner, cache.NewLRU(1<<20), 1024)

	blob, err := store.Open(ctx, "data.parquet")
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 3000)
	n, err := blob.ReadAt(buf, 500)
	require.NoError(t, err)
	require.Equal(t, 3000, n)
	require.Equal(t, data[500:3500], buf)

	// Blocks 0..3 were fetched in one coalesced read.
	require.Equal(t, int64(1), inner.reads.Load())

	n, err = blob.ReadAt(buf[:100], 1000)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.Equal(t, data[1000:1100], buf[:100])
	require.Equal(t, int64(1), inner.reads.Load())

	hits, misses := store.Stats()
	require.Positive(t, hits)
	require.Positive(t, misses)
}

func TestCachingStore_ReadPastEnd(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	data := newTestData(2500)
	require.NoError(t, Put(ctx, mem, "blob", data))

	store := NewCachingStore(mem, cache.NewShardedLRU(1<<20), 1024)
	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)

	buf := make([]byte, 1000)
	n, err := blob.ReadAt(buf, 2000)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 500, n)
	require.Equal(t, data[2000:], buf[:n])

	_, err = blob.ReadAt(buf, 2500)
	require.ErrorIs(t, err, io.EOF)
}

func TestCachingStore_DropCacheInvalidates(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, Put(ctx, mem, "arrow/data.arrow", newTestData(4096)))

	inner := &countingStore{Store: mem}
	c := cache.NewLRU(1 << 20)
	store := NewCachingStore(inner, c, 1024)

	blob, err := store.Open(ctx, "arrow/data.arrow")
	require.NoError(t, err)

	_, err = blob.ReadAt(make([]byte, 4096), 0)
	require.NoError(t, err)
	require.Equal(t, int64(4096), c.Size())

	_, err = store.DropCache(ctx, "arrow/")
	require.NoError(t, err)
	require.Zero(t, c.Size())

	_, err = blob.ReadAt(make([]byte, 10), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), inner.reads.Load())
}

func TestCachingStore_CreateInvalidates(t *testing.T) {
	ctx := context.Background()
	store := NewCachingStore(NewMemoryStore(), cache.NewLRU(1<<20), 16)

	require.NoError(t, Put(ctx, store, "blob", []byte("first version...")))
	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = blob.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "first", string(buf))

	require.NoError(t, Put(ctx, store, "blob", []byte("second version..")))
	blob, err = store.Open(ctx, "blob")
	require.NoError(t, err)
	_, err = blob.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "secon", string(buf))
}

func TestCachingStore_SharedCacheNamespaces(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLRU(1 << 20)

	a := NewCachingStore(NewMemoryStore(), c, 16, WithNamespace("s3://a/"))
	b := NewCachingStore(NewMemoryStore(), c, 16, WithNamespace("s3://b/"))
	require.NoError(t, Put(ctx, a, "data.colv", []byte("aaaaaaaaaaaaaaaa")))
	require.NoError(t, Put(ctx, b, "data.colv", []byte("bbbbbbbbbbbbbbbb")))

	buf := make([]byte, 4)
	for _, tc := range []struct {
		store *CachingStore
		want  string
	}{{a, "aaaa"}, {b, "bbbb"}} {
		blob, err := tc.store.Open(ctx, "data.colv")
		require.NoError(t, err)
		_, err = blob.ReadAt(buf, 0)
		require.NoError(t, err)
		require.Equal(t, tc.want, string(buf))
	}
	require.Equal(t, int64(32), c.Size())

	_, err := a.DropCache(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(16), c.Size())
}
