package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/hupe1980/colbench/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache block size used when none is configured.
const DefaultBlockSize = 64 << 10

// CachingStore wraps a Store and caches blob reads in fixed-size blocks.
//
// It is meant for remote stores, where every ReadAt is a network round trip.
type CachingStore struct {
	inner     Store
	cache     cache.BlockCache
	blockSize int64
	namespace string
}

// CachingOption configures a CachingStore.
type CachingOption func(*CachingStore)

// WithNamespace prefixes cache keys so several stores can share one cache.
func WithNamespace(ns string) CachingOption {
	return func(s *CachingStore) { s.namespace = ns }
}

// NewCachingStore creates a new CachingStore.
// blockSize defaults to DefaultBlockSize if <= 0.
func NewCachingStore(inner Store, c cache.BlockCache, blockSize int64, opts ...CachingOption) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	s := &CachingStore{inner: inner, cache: c, blockSize: blockSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a cached blob.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      s.namespace + name,
		blockSize: s.blockSize,
	}, nil
}

// Create writes through to the inner store and invalidates stale blocks.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(func(path string) bool { return path == name })
	return s.inner.Create(ctx, name)
}

// Delete removes the blob and its cached blocks.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(func(path string) bool { return path == name })
	return s.inner.Delete(ctx, name)
}

// List delegates to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// DropCache clears cached blocks below prefix and forwards to the inner store.
func (s *CachingStore) DropCache(ctx context.Context, prefix string) (CacheStats, error) {
	s.invalidate(func(path string) bool { return strings.HasPrefix(path, prefix) })
	return DropCache(ctx, s.inner, prefix)
}

// Stats returns cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *CachingStore) invalidate(match func(path string) bool) {
	s.cache.Invalidate(func(key cache.Key) bool {
		name, ok := strings.CutPrefix(key.Path, s.namespace)
		return ok && match(name)
	})
}

// CachingBlob wraps a Blob and uses the block cache for reads.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

// Close closes the underlying blob.
func (b *CachingBlob) Close() error { return b.inner.Close() }

// Size returns the size of the underlying blob.
func (b *CachingBlob) Size() int64 { return b.inner.Size() }

// ReadAt serves p from cached blocks, fetching missing blocks first.
func (b *CachingBlob) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	end := min(off+int64(len(p)), size)
	startBlock := off / b.blockSize
	endBlock := (end - 1) / b.blockSize

	// ReadAt has no context; the backend read is bounded by the store client.
	ctx := context.Background()
	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}

		blkStart := blk * b.blockSize
		from := max(blkStart, off)
		to := min(blkStart+int64(len(data)), end)
		if to <= from {
			break
		}
		total += copy(p[from-off:to-off], data[from-blkStart:to-blkStart])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads missing blocks in [startBlock, endBlock], fetching each
// contiguous run of missing blocks with a single backend read.
func (b *CachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	type run struct{ start, count int64 }

	var missing []run
	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.cache.Get(ctx, b.key(blk)); ok {
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
			continue
		}
		missing = append(missing, run{start: blk, count: 1})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			byteSize := min(r.count*b.blockSize, b.Size()-byteStart)
			if byteSize <= 0 {
				return nil
			}

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+b.blockSize, int64(len(buf)))
				// Copy so that a single cached block does not pin the whole run.
				block := make([]byte, hi-lo)
				copy(block, buf[lo:hi])
				b.cache.Set(ctx, b.key(r.start+i), block)
			}
			return nil
		})
	}
	return g.Wait()
}

// block returns a block from the cache, reading it directly if it was evicted
// between fillCache and the copy.
func (b *CachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	key := b.key(blk)
	if data, ok := b.cache.Get(ctx, key); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]
	if n > 0 {
		b.cache.Set(ctx, key, buf)
	}
	return buf, nil
}

func (b *CachingBlob) key(blk int64) cache.Key {
	return cache.Key{Path: b.name, Block: uint64(blk)}
}
