package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/colbench/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_RoundTripFile(t *testing.T) {
	s, err := stats.Compute([]float64{1, 2, 3, 4})
	require.NoError(t, err)

	runID := NewRunID()
	_, err = uuid.Parse(runID)
	require.NoError(t, err)

	dut := DUT{Name: "columnar", Version: "dev", Timestamp: 1700000000}
	a := NewRecord("take_columnar", runID, dut, NewSummary(s, 1, 12.5), []float64{1, 2, 3, 4},
		map[string]any{"num_queries": 4})
	b := NewRecord("take_parquet", runID, dut, NewSummary(s, 0, 10), nil, nil)

	path := filepath.Join(t.TempDir(), "results.jsonl")
	require.NoError(t, AppendResults(path, a))
	require.NoError(t, AppendResults(path, b))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadResults(f)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "take_columnar", got[0].BenchmarkName)
	assert.Equal(t, runID, got[0].RunID)
	assert.Equal(t, dut, got[0].DUT)
	assert.Equal(t, UnitsSeconds, got[0].Units)
	assert.InDelta(t, 2.5, got[0].Summary.Mean, 1e-12)
	assert.InDelta(t, 3.0, got[0].Summary.P50, 1e-12)
	assert.Equal(t, 4, got[0].Summary.N)
	assert.Equal(t, 1, got[0].Summary.Failures)
	assert.InDelta(t, 12.5, got[0].Summary.Throughput, 1e-12)
	assert.EqualValues(t, 4, got[0].Params["num_queries"])
	assert.Equal(t, "take_parquet", got[1].BenchmarkName)
	assert.Empty(t, got[1].Values)
}

func TestResults_FieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, Record{BenchmarkName: "x", RunID: "r"}))

	line := buf.String()
	for _, key := range []string{`"benchmark_name"`, `"run_id"`, `"dut"`, `"summary"`, `"p99"`, `"failures"`, `"throughput"`} {
		assert.Contains(t, line, key)
	}
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestReadResults_Invalid(t *testing.T) {
	_, err := ReadResults(strings.NewReader("{\"benchmark_name\":1}\n"))
	require.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.0 KiB", Bytes(1024))
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "2.0 KiB/s", ByteRate(4096, 2))
	assert.Equal(t, "n/a", ByteRate(1, 0))
	assert.Equal(t, "2.50M rows/s", RowRate(5_000_000, 2))
	assert.Equal(t, "1.50K rows/s", RowRate(3_000, 2))
	assert.Equal(t, "10 rows/s", RowRate(10, 1))
}

func TestWriteTake(t *testing.T) {
	var buf bytes.Buffer
	WriteTake(&buf, Take{
		Engine:     "columnar",
		Datasets:   2,
		Queries:    2000,
		Failures:   3,
		Stats:      stats.Statistics{N: 2000, Mean: 0.0125, P50: 0.01},
		Throughput: 80,
		Rows:       1_000_000,
		TotalRows:  2_000_000,
	})

	out := buf.String()
	assert.Contains(t, out, "BENCHMARK RESULTS")
	assert.Contains(t, out, "Queries: 2,000 (3 failed)")
	assert.Contains(t, out, "0.012500")
	assert.Contains(t, out, "Throughput: 80.00 queries/sec")
	assert.Contains(t, out, "Total rows scanned: 2,000,000")
}

func TestWriteScan(t *testing.T) {
	var buf bytes.Buffer
	err := WriteScan(&buf, Scan{Engine: "arrow", FileSize: 2048, Rows: 1000, Latencies: []float64{0.5, 0.5}}, 1024)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "File size: 2.0 KiB (2.00x input)")
	assert.Contains(t, out, "Row count: 1,000")
	assert.Contains(t, out, "4.0 KiB/s, 2.00K rows/s")

	require.ErrorIs(t, WriteScan(&buf, Scan{Engine: "x"}, 1), stats.ErrEmptySample)
}

func TestWriteComparison(t *testing.T) {
	var buf bytes.Buffer
	WriteComparison(&buf, []Scan{{Engine: "only", Latencies: []float64{1}}})
	assert.Empty(t, buf.String())

	WriteComparison(&buf, []Scan{
		{Engine: "parquet", FileSize: 4096, Latencies: []float64{2, 2}},
		{Engine: "columnar", FileSize: 8192, Latencies: []float64{1, 1}},
	})
	out := buf.String()
	assert.Contains(t, out, "COMPARISON SUMMARY")
	assert.Contains(t, out, "2.00x")
	assert.Contains(t, out, "Fastest: columnar (1.0000s mean)")
	assert.Contains(t, out, "Smallest: parquet (4.0 KiB)")
}
