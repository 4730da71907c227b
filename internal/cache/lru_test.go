package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(30)
	ctx := context.Background()

	a := Key{Path: "data.parquet", Block: 0}
	b := Key{Path: "data.parquet", Block: 1}
	d := Key{Path: "data.parquet", Block: 2}

	c.Set(ctx, a, make([]byte, 10))
	c.Set(ctx, b, make([]byte, 10))

	// Touch a so that b becomes the eviction candidate.
	_, ok := c.Get(ctx, a)
	require.True(t, ok)

	c.Set(ctx, d, make([]byte, 15))

	_, ok = c.Get(ctx, b)
	assert.False(t, ok)
	_, ok = c.Get(ctx, a)
	assert.True(t, ok)
	assert.Equal(t, int64(25), c.Size())
	assert.Equal(t, 2, c.Len())
}

func TestLRU_EdgeCases(t *testing.T) {
	c := NewLRU(50)
	ctx := context.Background()
	k := Key{Path: "x", Block: 1}

	c.Set(ctx, k, make([]byte, 60))
	_, ok := c.Get(ctx, k)
	assert.False(t, ok, "item > capacity should not be cached")

	c.Set(ctx, k, make([]byte, 10))
	assert.Equal(t, int64(10), c.Size())

	c.Set(ctx, k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())

	c.Set(ctx, k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(0), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRU(1 << 10)
	ctx := context.Background()

	for i := range 4 {
		c.Set(ctx, Key{Path: "a", Block: uint64(i)}, []byte{1})
		c.Set(ctx, Key{Path: "b", Block: uint64(i)}, []byte{1})
	}

	c.Invalidate(func(k Key) bool { return k.Path == "a" })

	assert.Equal(t, 4, c.Len())
	_, ok := c.Get(ctx, Key{Path: "a", Block: 0})
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key{Path: "b", Block: 0})
	assert.True(t, ok)
}

func TestShardedLRU_Concurrent(t *testing.T) {
	c := NewShardedLRU(1 << 20)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				k := Key{Path: fmt.Sprintf("blob-%d", g), Block: uint64(i)}
				c.Set(ctx, k, []byte{byte(i)})
				v, ok := c.Get(ctx, k)
				if assert.True(t, ok) {
					assert.Equal(t, byte(i), v[0])
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), c.Size())
	hits, _ := c.Stats()
	assert.Equal(t, int64(800), hits)

	c.Invalidate(func(k Key) bool { return k.Path == "blob-0" })
	assert.Equal(t, int64(700), c.Size())
}
