// Package enginetest provides a conformance suite for engine implementations.
package enginetest

import (
	"context"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hupe1980/colbench/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// Rows is the size of the dataset written by the suite.
	Rows = 1000
	// Dim is the vector dimension used by the suite.
	Dim = 8
	// BatchRows is the write batch size; it does not divide Rows.
	BatchRows = 96
)

// Factory returns a fresh engine and an empty dataset URI.
type Factory func(t *testing.T) (engine.Engine, string)

// Vectors returns the deterministic dataset the suite writes.
// Row r, component j holds r*Dim+j.
func Vectors(rows, dim int) []float32 {
	flat := make([]float32, rows*dim)
	for i := range flat {
		flat[i] = float32(i)
	}
	return flat
}

// Write materializes the suite dataset.
func Write(t testing.TB, e engine.Engine, uri string) engine.Handle {
	t.Helper()
	h, err := e.Write(context.Background(), uri, engine.NewSliceSource(Dim, Vectors(Rows, Dim), BatchRows))
	require.NoError(t, err)
	return h
}

// Run executes the conformance suite.
func Run(t *testing.T, factory Factory) {
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, factory) })
	t.Run("Take", func(t *testing.T) { testTake(t, factory) })
	t.Run("TakeInvalid", func(t *testing.T) { testTakeInvalid(t, factory) })
	t.Run("Scan", func(t *testing.T) { testScan(t, factory) })
	t.Run("ConcurrentTake", func(t *testing.T) { testConcurrentTake(t, factory) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory) })
	t.Run("OpenMissing", func(t *testing.T) { testOpenMissing(t, factory) })
}

func testLifecycle(t *testing.T, factory Factory) {
	ctx := context.Background()
	e, uri := factory(t)

	assert.False(t, e.Exists(ctx, uri, -1))

	h := Write(t, e, uri)
	assert.Equal(t, int64(Rows), h.NumRows())
	assert.Positive(t, h.Size())
	require.NoError(t, h.Close())

	assert.True(t, e.Exists(ctx, uri, Rows))
	assert.True(t, e.Exists(ctx, uri, -1))
	assert.False(t, e.Exists(ctx, uri, Rows+1))

	h, err := e.Open(ctx, uri)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, int64(Rows), h.NumRows())

	assert.NoError(t, e.DropCache(ctx, uri))
}

func testTake(t *testing.T, factory Factory) {
	e, uri := factory(t)
	h := Write(t, e, uri)
	defer h.Close()

	want := Vectors(Rows, Dim)

	tests := []struct {
		name    string
		indices []uint64
		rows    []int
	}{
		{"empty", nil, nil},
		{"first", []uint64{0}, []int{0}},
		{"last", []uint64{Rows - 1}, []int{Rows - 1}},
		{"run", []uint64{2, 3, 4}, []int{2, 3, 4}},
		{"duplicates", []uint64{5, 5, 7, 7, 7}, []int{5, 7}},
		{"spread", []uint64{0, 95, 96, 97, 500, 998, 999}, []int{0, 95, 96, 97, 500, 998, 999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := h.Take(context.Background(), tt.indices)
			require.NoError(t, err)
			defer rec.Release()

			assertRows(t, rec, want, tt.rows)
		})
	}

	t.Run("all", func(t *testing.T) {
		all := make([]uint64, Rows)
		for i := range all {
			all[i] = uint64(i)
		}
		rec, err := h.Take(context.Background(), all)
		require.NoError(t, err)
		defer rec.Release()

		got, _, err := engine.Vectors(rec)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func testTakeInvalid(t *testing.T, factory Factory) {
	e, uri := factory(t)
	h := Write(t, e, uri)
	defer h.Close()

	_, err := h.Take(context.Background(), []uint64{3, 1})
	assert.Error(t, err)

	_, err = h.Take(context.Background(), []uint64{Rows})
	assert.Error(t, err)

	kind, ok := engine.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindInvalid, kind)
}

func testScan(t *testing.T, factory Factory) {
	e, uri := factory(t)
	h := Write(t, e, uri)
	defer h.Close()

	for range 2 {
		n, err := h.Scan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(Rows), n)
	}
}

func testConcurrentTake(t *testing.T, factory Factory) {
	e, uri := factory(t)
	h := Write(t, e, uri)
	defer h.Close()

	want := Vectors(Rows, Dim)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				start := (g*131 + i*17) % (Rows - 10)
				idx := []uint64{uint64(start), uint64(start + 3), uint64(start + 9)}
				rec, err := h.Take(context.Background(), idx)
				if !assert.NoError(t, err) {
					return
				}
				assertRows(t, rec, want, []int{start, start + 3, start + 9})
				rec.Release()
			}
		}()
	}
	wg.Wait()
}

func testOverwrite(t *testing.T, factory Factory) {
	ctx := context.Background()
	e, uri := factory(t)

	h := Write(t, e, uri)
	require.NoError(t, h.Close())

	small := Vectors(10, Dim)
	h, err := e.Write(ctx, uri, engine.NewSliceSource(Dim, small, 4))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, int64(10), h.NumRows())
	assert.True(t, e.Exists(ctx, uri, 10))
	assert.False(t, e.Exists(ctx, uri, Rows))

	rec, err := h.Take(ctx, []uint64{9})
	require.NoError(t, err)
	defer rec.Release()
	assertRows(t, rec, small, []int{9})
}

func testOpenMissing(t *testing.T, factory Factory) {
	e, uri := factory(t)

	_, err := e.Open(context.Background(), uri)
	require.Error(t, err)

	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, e.Name(), ee.Engine)
	assert.Equal(t, engine.KindNotFound, ee.Kind)
}

// assertRows only uses assert so it can run inside goroutines.
func assertRows(t *testing.T, rec arrow.Record, want []float32, rows []int) {
	t.Helper()

	if !assert.Equal(t, int64(len(rows)), rec.NumRows()) {
		return
	}
	got, dim, err := engine.Vectors(rec)
	if !assert.NoError(t, err) {
		return
	}
	if len(rows) > 0 && !assert.Equal(t, Dim, dim) {
		return
	}

	for i, r := range rows {
		assert.Equal(t, want[r*Dim:(r+1)*Dim], got[i*Dim:(i+1)*Dim], "row %d", r)
	}
}
