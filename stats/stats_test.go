package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSingleSample(t *testing.T) {
	s, err := Compute([]float64{5.0})
	require.NoError(t, err)

	require.Equal(t, Statistics{N: 1, Mean: 5, Std: 0, Min: 5, Max: 5, P50: 5, P95: 5, P99: 5}, s)
}

func TestComputeNearestRankPercentiles(t *testing.T) {
	s, err := Compute([]float64{4.0, 2.0, 1.0, 3.0})
	require.NoError(t, err)

	require.InDelta(t, 2.5, s.Mean, 1e-12)
	require.InDelta(t, math.Sqrt(1.25), s.Std, 1e-12)
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 4.0, s.Max)

	// floor(4*0.5) = 2, not the interpolated 2.5.
	require.Equal(t, 3.0, s.P50)
	require.Equal(t, 4.0, s.P95)
	require.Equal(t, 4.0, s.P99)
}

func TestComputeHundredSamples(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(100 - i)
	}

	s, err := Compute(samples)
	require.NoError(t, err)

	require.Equal(t, 51.0, s.P50)
	require.Equal(t, 96.0, s.P95)
	require.Equal(t, 100.0, s.P99)
	require.Equal(t, 100, s.N)

	// Input order is left untouched.
	require.Equal(t, 100.0, samples[0])
}

func TestComputeZeroSamplesSkewMean(t *testing.T) {
	s, err := Compute([]float64{0, 0, 2, 2})
	require.NoError(t, err)

	require.Equal(t, 1.0, s.Mean)
	require.Equal(t, 0.0, s.Min)
}

func TestComputeEmpty(t *testing.T) {
	_, err := Compute(nil)
	require.ErrorIs(t, err, ErrEmptySample)
}

func TestThroughput(t *testing.T) {
	require.Equal(t, 50.0, Throughput(100, 2))
	require.Equal(t, 0.0, Throughput(100, 0))
}
