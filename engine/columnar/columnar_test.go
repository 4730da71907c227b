package columnar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/engine/enginetest"
	"github.com/hupe1980/colbench/internal/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	for _, id := range []compress.ID{compress.None, compress.LZ4, compress.Zstd, compress.Snappy} {
		for _, mode := range []blobstore.ReadMode{blobstore.ReadModePread, blobstore.ReadModeMmap} {
			t.Run(id.String()+"/"+mode.String(), func(t *testing.T) {
				codec, err := compress.ByID(id)
				require.NoError(t, err)

				enginetest.Run(t, func(t *testing.T) (engine.Engine, string) {
					stores := engine.NewStores(engine.StoreOptions{ReadMode: mode})
					// Small blocks so takes cross block boundaries.
					return New(stores, WithCodec(codec), WithBlockRows(64)), t.TempDir()
				})
			})
		}
	}
}

func TestEngineNames(t *testing.T) {
	stores := engine.NewStores(engine.StoreOptions{})
	assert.Equal(t, "columnar", New(stores).Name())

	for _, name := range []string{"lz4", "zstd", "snappy"} {
		codec, err := compress.ByName(name)
		require.NoError(t, err)
		assert.Equal(t, "columnar-"+name, New(stores, WithCodec(codec)).Name())
	}
}

func TestRowsPerBlock(t *testing.T) {
	stores := engine.NewStores(engine.StoreOptions{})
	assert.Equal(t, 21, New(stores).rowsPerBlock(768))
	assert.Equal(t, 1, New(stores, WithBlockBytes(16)).rowsPerBlock(768))
	assert.Equal(t, 7, New(stores, WithBlockRows(7)).rowsPerBlock(768))
}

func TestFooterRoundTrip(t *testing.T) {
	f := Footer{
		Magic:         FormatMagic,
		Version:       FormatVersion,
		Flags:         FlagCompressed,
		Dimension:     768,
		Count:         1000,
		BlockRows:     100,
		BlockCount:    10,
		IndexOffset:   12345,
		IndexChecksum: 42,
		Codec:         compress.Zstd,
	}
	buf, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, FooterSize)

	var got Footer
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, f, got)

	buf[16] ^= 0xFF
	assert.ErrorIs(t, got.UnmarshalBinary(buf), ErrCorrupted)
}

func TestFooterValidate(t *testing.T) {
	f := Footer{Magic: FormatMagic, Version: FormatVersion, Dimension: 4, BlockRows: 10, Count: 25, BlockCount: 3}
	assert.NoError(t, f.Validate())

	bad := f
	bad.BlockCount = 2
	assert.Error(t, bad.Validate())

	bad = f
	bad.Magic = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMagic)

	bad = f
	bad.Version = FormatVersion + 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidVersion)
}

func writeFile(t *testing.T, codec compress.Codec, vectors []float32, dim, blockRows int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, dim, blockRows, codec)
	require.NoError(t, err)
	require.NoError(t, w.Write(vectors))
	require.Equal(t, uint64(len(vectors)/dim), w.Count())
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openBytes(t *testing.T, data []byte) (*Reader, error) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	require.NoError(t, blobstore.Put(context.Background(), store, "f", data))
	blob, err := store.Open(context.Background(), "f")
	require.NoError(t, err)
	return NewReader(blob)
}

func TestIncompressibleBlocksStoredRaw(t *testing.T) {
	// Random-looking mantissas do not compress with lz4.
	vectors := make([]float32, 4*256)
	x := uint32(2463534242)
	for i := range vectors {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		vectors[i] = float32(x) / 3.0
	}

	codec, err := compress.ByID(compress.LZ4)
	require.NoError(t, err)

	r, err := openBytes(t, writeFile(t, codec, vectors, 4, 64))
	require.NoError(t, err)
	for _, e := range r.index {
		assert.Equal(t, compress.None, e.Codec)
	}

	rec, err := r.Take(context.Background(), []uint64{0, 255})
	require.NoError(t, err)
	defer rec.Release()
	got, _, err := engine.Vectors(rec)
	require.NoError(t, err)
	assert.Equal(t, vectors[:4], got[:4])
	assert.Equal(t, vectors[255*4:], got[4:])
}

func TestCorruptedBlockDetected(t *testing.T) {
	codec, err := compress.ByID(compress.Zstd)
	require.NoError(t, err)

	data := writeFile(t, codec, make([]float32, 200*4), 4, 50)
	data[MagicSize+2] ^= 0xFF

	r, err := openBytes(t, data)
	require.NoError(t, err)

	_, err = r.Take(context.Background(), []uint64{1})
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = r.Scan(context.Background())
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestInvalidFiles(t *testing.T) {
	_, err := openBytes(t, []byte("tiny"))
	assert.Error(t, err)

	data := writeFile(t, rawCodec(t), enginetest.Vectors(10, 4), 4, 4)
	data[0] = 'X'
	_, err = openBytes(t, data)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func rawCodec(t *testing.T) compress.Codec {
	c, err := compress.ByID(compress.None)
	require.NoError(t, err)
	return c
}

func TestOpenCorruptedReportsFormatError(t *testing.T) {
	dir := t.TempDir()
	e := New(engine.NewStores(engine.StoreOptions{}))
	h := enginetest.Write(t, e, dir)
	require.NoError(t, h.Close())

	path := filepath.Join(dir, engine.DataFile(Extension))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-10] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	assert.False(t, e.Exists(context.Background(), dir, -1))

	_, err = e.Open(context.Background(), dir)
	kind, ok := engine.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindFormat, kind)
}
