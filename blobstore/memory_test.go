package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, Put(ctx, store, "a/1", []byte("one")))
	require.NoError(t, Put(ctx, store, "a/2", []byte("two")))
	require.NoError(t, Put(ctx, store, "b/1", []byte("three")))

	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	require.Equal(t, []string{"a/1", "a/2"}, names)

	blob, err := store.Open(ctx, "b/1")
	require.NoError(t, err)
	require.Equal(t, int64(5), blob.Size())

	buf := make([]byte, 3)
	_, err = blob.ReadAt(buf, 2)
	require.NoError(t, err)
	require.Equal(t, "ree", string(buf))

	w, err := store.Create(ctx, "c")
	require.NoError(t, err)
	_, err = w.Write([]byte("gone"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	_, ok := Exists(ctx, store, "c")
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "a/1"))
	_, err = store.Open(ctx, "a/1")
	require.ErrorIs(t, err, ErrNotFound)

	stats, err := DropCache(ctx, store, "")
	require.NoError(t, err)
	require.Zero(t, stats.Files)
}
