//go:build unix

package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello columnar world"), 0o600))

	m, err := Open(path)
	require.NoError(t, err)

	require.Equal(t, 20, m.Size())
	require.Equal(t, "hello", string(m.Bytes()[:5]))
	require.NoError(t, m.Advise(AdviceRandom))
	require.NoError(t, m.Advise(AdviceSequential))

	buf := make([]byte, 8)
	n, err := m.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "columnar", string(buf))

	n, err = m.ReadAt(buf, 15)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 5, n)

	_, err = m.ReadAt(buf, -1)
	require.ErrorIs(t, err, ErrInvalidOffset)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	require.Nil(t, m.Bytes())

	_, err = m.ReadAt(buf, 0)
	require.ErrorIs(t, err, ErrClosed)
}

func TestMappingEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, 0, m.Size())
	_, err = m.ReadAt(make([]byte, 1), 0)
	require.ErrorIs(t, err, io.EOF)
}
