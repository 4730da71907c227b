package parquet

import (
	"context"
	"testing"

	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/engine/enginetest"
	"github.com/hupe1980/colbench/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []Option
	}{
		{"sync", nil},
		{"async", []Option{WithAsync()}},
		{"zstd", []Option{WithCompression("zstd")}},
		{"uncompressed", []Option{WithCompression("none"), WithAsync()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enginetest.Run(t, func(t *testing.T) (engine.Engine, string) {
				// Small row groups so takes span several of them.
				opts := append([]Option{WithRowGroupRows(100)}, tc.opts...)
				return New(engine.NewStores(engine.StoreOptions{}), opts...), t.TempDir()
			})
		})
	}
}

func TestNames(t *testing.T) {
	stores := engine.NewStores(engine.StoreOptions{})
	assert.Equal(t, "parquet", New(stores).Name())
	assert.Equal(t, "parquet-async", New(stores, WithAsync()).Name())
}

func TestCodec(t *testing.T) {
	for _, name := range []string{"", "none", "snappy", "lz4", "zstd"} {
		_, err := Codec(name)
		assert.NoError(t, err, name)
	}
	_, err := Codec("brotli-9000")
	assert.Error(t, err)
}

func TestSplitAcrossRowGroups(t *testing.T) {
	e := New(engine.NewStores(engine.StoreOptions{}), WithRowGroupRows(100))
	h := enginetest.Write(t, e, t.TempDir())
	defer h.Close()

	ph := h.(*handle)
	require.Len(t, ph.groups, 10)

	parts := ph.split([]selection.Range{{Start: 95, End: 105}, {Start: 150, End: 151}, {Start: 999, End: 1000}})
	require.Len(t, parts, 3)

	assert.Equal(t, 0, parts[0].group)
	assert.Equal(t, []selection.Range{{Start: 95, End: 100}}, parts[0].ranges)

	assert.Equal(t, 1, parts[1].group)
	assert.Equal(t, []selection.Range{{Start: 0, End: 5}, {Start: 50, End: 51}}, parts[1].ranges)

	assert.Equal(t, 9, parts[2].group)
	assert.Equal(t, []selection.Range{{Start: 99, End: 100}}, parts[2].ranges)
}

func TestExistsIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	e := New(engine.NewStores(engine.StoreOptions{}))

	stores := engine.NewStores(engine.StoreOptions{})
	store, _, err := stores.Open(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, blobstorePut(store, []byte("not a parquet file")))

	assert.False(t, e.Exists(context.Background(), dir, -1))
	_, err = e.Open(context.Background(), dir)
	kind, ok := engine.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindFormat, kind)
}

func blobstorePut(store blobstore.Store, data []byte) error {
	return blobstore.Put(context.Background(), store, engine.DataFile(Extension), data)
}
