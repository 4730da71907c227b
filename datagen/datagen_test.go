package datagen

import (
	"io"
	"math"
	"slices"
	"testing"

	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ engine.BatchSource = (*Gaussian)(nil)

func TestGaussian_Batches(t *testing.T) {
	g := NewGaussian(Config{Rows: 25, BatchSize: 10, Dim: 4, Seed: 1})
	assert.Equal(t, int64(25), g.NumRows())
	assert.Equal(t, 4, g.Dim())

	var sizes []int
	for {
		b, err := g.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, len(b))
	}
	assert.Equal(t, []int{40, 40, 20}, sizes)
}

func TestGaussian_Deterministic(t *testing.T) {
	cfg := Config{Rows: 100, BatchSize: 32, Dim: 8, Seed: 42}

	a, err := engine.ReadAll(NewGaussian(cfg))
	require.NoError(t, err)
	b, err := engine.ReadAll(NewGaussian(cfg))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	g := NewGaussian(cfg)
	_, err = g.Next()
	require.NoError(t, err)
	g.Reset()
	c, err := engine.ReadAll(g)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	cfg.Seed = 43
	d, err := engine.ReadAll(NewGaussian(cfg))
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestGaussian_Distribution(t *testing.T) {
	vals, err := engine.ReadAll(NewGaussian(Config{Rows: 1000, BatchSize: 256, Dim: 64, Seed: 7}))
	require.NoError(t, err)

	var sum, sq float64
	for _, v := range vals {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(len(vals))
	mean := sum / n
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1, math.Sqrt(sq/n-mean*mean), 0.02)
}

func TestGaussian_InvalidConfig(t *testing.T) {
	_, err := NewGaussian(Config{Rows: 10, BatchSize: 0, Dim: 4}).Next()
	assert.Error(t, err)
	_, err = NewGaussian(Config{Rows: 10, BatchSize: 4, Dim: 0}).Next()
	assert.Error(t, err)
}

func TestQueries(t *testing.T) {
	qs, err := Queries(NewRNG(1), QueryConfig{NumQueries: 50, RowsPerQuery: 20, MaxRow: 100})
	require.NoError(t, err)
	require.Len(t, qs, 50)

	for _, q := range qs {
		require.Len(t, q, 20)
		assert.True(t, slices.IsSorted(q))
		for _, idx := range q {
			assert.Less(t, idx, uint64(100))
		}
		_, err := selection.FromIndices(q, 100)
		assert.NoError(t, err)
	}
}

func TestQueries_Unique(t *testing.T) {
	for _, rows := range []int{5, 80, 200} {
		qs, err := Queries(NewRNG(2), QueryConfig{NumQueries: 10, RowsPerQuery: rows, MaxRow: 100, Unique: true})
		require.NoError(t, err)

		for _, q := range qs {
			assert.Len(t, q, min(rows, 100))
			assert.True(t, slices.IsSorted(q))
			assert.Len(t, slices.Compact(slices.Clone(q)), len(q), "duplicates in %v", q)
		}
	}
}

func TestQueries_Invalid(t *testing.T) {
	_, err := Queries(NewRNG(1), QueryConfig{NumQueries: 1, RowsPerQuery: 1, MaxRow: 0})
	assert.Error(t, err)

	qs, err := Queries(NewRNG(1), QueryConfig{NumQueries: 3, RowsPerQuery: 0, MaxRow: 0})
	require.NoError(t, err)
	for _, q := range qs {
		assert.Empty(t, q)
	}
}

func TestDeriveSeed(t *testing.T) {
	a := DeriveSeed(42, "file:///tmp/dataset/0")
	assert.Equal(t, a, DeriveSeed(42, "file:///tmp/dataset/0"))
	assert.NotEqual(t, a, DeriveSeed(42, "file:///tmp/dataset/1"))
	assert.NotEqual(t, a, DeriveSeed(43, "file:///tmp/dataset/0"))
	assert.GreaterOrEqual(t, a, int64(0))

	// Part boundaries matter.
	assert.NotEqual(t, DeriveSeed(1, "ab", "c"), DeriveSeed(1, "a", "bc"))
}
