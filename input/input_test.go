package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/engine"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.parquet", FormatParquet},
		{"a.PARQUET", FormatParquet},
		{"a.arrow", FormatArrow},
		{"a.ipc", FormatArrow},
		{"a.feather", FormatArrow},
		{"a.csv", FormatCSV},
		{"a.json", FormatJSON},
		{"a.jsonl", FormatJSON},
		{"dir/a.ndjson", FormatJSON},
	}
	for _, tt := range tests {
		got, err := Detect(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := Detect("a.lance")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Detect("noext")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_CSVNumericColumns(t *testing.T) {
	path := writeFile(t, "v.csv", "id,a,b,c\n0,1.5,2,3\n1,4,5,6\n2,7,8,9\n")
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())

	in, err := Load(context.Background(), path, WithAllocator(mem), WithChunkRows(2))
	require.NoError(t, err)
	mem.AssertSize(t, 0)

	assert.Equal(t, FormatCSV, in.Format)
	assert.Equal(t, 3, in.Dim)
	assert.Equal(t, int64(3), in.Rows)
	assert.Equal(t, []float32{1.5, 2, 3, 4, 5, 6, 7, 8, 9}, in.Flat)
	assert.Equal(t, int64(36), in.MemoryBytes())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), in.FileSize)
}

func TestLoad_CSVVectorColumn(t *testing.T) {
	path := writeFile(t, "v.csv", "id,vector\n0,\"[1,2]\"\n1,\"[3,4]\"\n")

	in, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Dim)
	assert.Equal(t, []float32{1, 2, 3, 4}, in.Flat)
}

func TestLoad_JSONLines(t *testing.T) {
	path := writeFile(t, "v.jsonl", "[1,2,3]\n[4,5,6]\n\n[7,8,9]\n")

	in, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, in.Format)
	assert.Equal(t, int64(3), in.Rows)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, in.Flat)
}

func TestLoad_JSONArrayOfObjects(t *testing.T) {
	path := writeFile(t, "v.json", `[
		{"id": 1, "embedding": [0.5, 1.5]},
		{"id": 2, "embedding": [2.5, 3.5]}
	]`)

	in, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Dim)
	assert.Equal(t, []float32{0.5, 1.5, 2.5, 3.5}, in.Flat)
}

func TestLoad_JSONNumericFields(t *testing.T) {
	path := writeFile(t, "v.ndjson", "{\"id\":0,\"y\":2,\"x\":1}\n{\"id\":1,\"x\":3,\"y\":4}\n")

	in, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, in.Flat)
}

func TestLoad_JSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"ragged", "[1,2]\n[3]\n", ErrRagged},
		{"empty", "   \n", ErrNoVectors},
		{"null element", "[1,null]\n", ErrNull},
		{"no numbers", "{\"name\":\"a\"}\n", ErrNoVectors},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeFile(t, "v.jsonl", tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_ArrowFileAndStream(t *testing.T) {
	const dim = 4
	flat := make([]float32, 10*dim)
	for i := range flat {
		flat[i] = float32(i)
	}
	rec := engine.NewRecord(memory.DefaultAllocator, dim, flat)
	defer rec.Release()

	dir := t.TempDir()

	filePath := filepath.Join(dir, "v.arrow")
	f, err := os.Create(filePath)
	require.NoError(t, err)
	fw, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()))
	require.NoError(t, err)
	require.NoError(t, fw.Write(rec))
	require.NoError(t, fw.Close())
	require.NoError(t, f.Close())

	streamPath := filepath.Join(dir, "v.ipc")
	s, err := os.Create(streamPath)
	require.NoError(t, err)
	sw := ipc.NewWriter(s, ipc.WithSchema(rec.Schema()))
	require.NoError(t, sw.Write(rec))
	require.NoError(t, sw.Close())
	require.NoError(t, s.Close())

	for _, path := range []string{filePath, streamPath} {
		mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
		in, err := Load(context.Background(), path, WithAllocator(mem))
		require.NoError(t, err, path)
		mem.AssertSize(t, 0)

		assert.Equal(t, FormatArrow, in.Format)
		assert.Equal(t, dim, in.Dim)
		assert.Equal(t, flat, in.Flat)
	}
}

type parquetRow struct {
	ID     int64     `parquet:"id"`
	Vector []float32 `parquet:"vector,list"`
}

func TestLoad_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	rows := []parquetRow{
		{ID: 0, Vector: []float32{1, 2, 3}},
		{ID: 1, Vector: []float32{4, 5, 6}},
	}
	w := parquet.NewGenericWriter[parquetRow](f)
	_, err = w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	in, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, in.Format)
	assert.Equal(t, 3, in.Dim)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, in.Flat)

	got, err := engine.ReadAll(in.Source(1))
	require.NoError(t, err)
	assert.Equal(t, in.Flat, got)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)

	dir := filepath.Join(t.TempDir(), "dir.csv")
	require.NoError(t, os.Mkdir(dir, 0o700))
	_, err = Load(context.Background(), dir)
	require.Error(t, err)

	_, err = Load(context.Background(), writeFile(t, "v.txt", "1,2"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(context.Background(), writeFile(t, "v.csv", "name\nfoo\n"))
	require.ErrorIs(t, err, ErrNoVectors)
}
