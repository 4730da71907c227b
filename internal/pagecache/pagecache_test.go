package pagecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDropDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.parquet"), make([]byte, 4096), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "part-0.bin"), make([]byte, 1024), 0o600))

	stats, err := DropDir(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Files)
	require.Equal(t, int64(5120), stats.Bytes)
	require.False(t, stats.Missing)
}

func TestDropDirMissing(t *testing.T) {
	stats, err := DropDir(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.True(t, stats.Missing)
	require.Zero(t, stats.Files)
}

func TestDropDirCanceled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DropDir(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDropFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.arrow")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))

	size, err := DropFile(path)
	require.NoError(t, err)
	require.Equal(t, int64(100), size)

	_, err = DropFile(path + ".missing")
	require.ErrorIs(t, err, os.ErrNotExist)
}
