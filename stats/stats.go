// Package stats summarizes latency samples.
package stats

import (
	"errors"
	"math"
	"slices"
)

// ErrEmptySample is returned when statistics are requested for no samples.
var ErrEmptySample = errors.New("stats: empty sample")

// Statistics summarizes a latency sample in seconds.
type Statistics struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

// Compute returns the mean, population standard deviation, extrema and
// p50/p95/p99 of samples.
//
// Percentiles use nearest rank without interpolation: the value at index
// floor(n*fraction) of the ascending sample. For an even-sized sample p50 is
// therefore the upper of the two middle values.
func Compute(samples []float64) (Statistics, error) {
	n := len(samples)
	if n == 0 {
		return Statistics{}, ErrEmptySample
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	return Statistics{
		N:    n,
		Mean: mean,
		Std:  math.Sqrt(sq / float64(n)),
		Min:  sorted[0],
		Max:  sorted[n-1],
		P50:  Percentile(sorted, 0.50),
		P95:  Percentile(sorted, 0.95),
		P99:  Percentile(sorted, 0.99),
	}, nil
}

// Percentile returns sorted[floor(len*fraction)], clamped to the last element.
// sorted must be ascending and non-empty.
func Percentile(sorted []float64, fraction float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * fraction))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Throughput returns operations per second, or zero for a non-positive duration.
func Throughput(ops int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(ops) / seconds
}
