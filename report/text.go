package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/colbench/stats"
)

// Rule returns a horizontal rule of width '=' characters.
func Rule(width int) string { return strings.Repeat("=", width) }

// Section writes a titled section header.
func Section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", Rule(60), title, Rule(60))
}

// Bytes formats a byte count with IEC units.
func Bytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// ByteRate formats bytes per second.
func ByteRate(bytes int64, seconds float64) string {
	if seconds <= 0 {
		return "n/a"
	}
	return Bytes(int64(float64(bytes)/seconds)) + "/s"
}

// RowRate formats rows per second with K/M suffixes.
func RowRate(rows int64, seconds float64) string {
	if seconds <= 0 {
		return "n/a"
	}
	rps := float64(rows) / seconds
	switch {
	case rps >= 1_000_000:
		return fmt.Sprintf("%.2fM rows/s", rps/1_000_000)
	case rps >= 1_000:
		return fmt.Sprintf("%.2fK rows/s", rps/1_000)
	default:
		return fmt.Sprintf("%.0f rows/s", rps)
	}
}

// WriteLatency writes the latency block with the given decimal precision.
func WriteLatency(w io.Writer, s stats.Statistics, precision int) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "  Latency (seconds):\n")
	for _, row := range []struct {
		name string
		v    float64
	}{
		{"mean", s.Mean},
		{"std", s.Std},
		{"min", s.Min},
		{"max", s.Max},
		{"p50", s.P50},
		{"p95", s.P95},
		{"p99", s.P99},
	} {
		fmt.Fprintf(tw, "    %s:\t%.*f\n", row.name, precision, row.v)
	}
	_ = tw.Flush()
}

// Take summarizes one take benchmark run.
type Take struct {
	Engine     string
	Datasets   int
	Queries    int
	Failures   int
	Stats      stats.Statistics
	Throughput float64
	Rows       int64
	TotalRows  int64
}

// WriteTake writes the take benchmark result block.
func WriteTake(w io.Writer, t Take) {
	Section(w, "BENCHMARK RESULTS")
	fmt.Fprintf(w, "\n  Engine: %s (%d datasets)\n", t.Engine, t.Datasets)
	fmt.Fprintf(w, "  Queries: %s (%d failed)\n\n", humanize.Comma(int64(t.Queries)), t.Failures)
	WriteLatency(w, t.Stats, 6)
	fmt.Fprintf(w, "\n  Throughput: %.2f queries/sec\n", t.Throughput)
	fmt.Fprintf(w, "  Rows taken: %s\n", humanize.Comma(t.Rows))
	fmt.Fprintf(w, "  Total rows scanned: %s\n", humanize.Comma(t.TotalRows))
}

// Scan is the outcome of benchmarking one engine.
type Scan struct {
	Engine    string
	FileSize  int64
	Rows      int64
	Latencies []float64
}

// Mean returns the mean latency, or 0 for an empty sample.
func (s Scan) Mean() float64 {
	if len(s.Latencies) == 0 {
		return 0
	}
	var sum float64
	for _, l := range s.Latencies {
		sum += l
	}
	return sum / float64(len(s.Latencies))
}

// WriteScan writes the per-engine scan block. inputSize is the size of the
// source file used for the size ratio.
func WriteScan(w io.Writer, s Scan, inputSize int64) error {
	st, err := stats.Compute(s.Latencies)
	if err != nil {
		return fmt.Errorf("report: %s: %w", s.Engine, err)
	}

	ratio := 0.0
	if inputSize > 0 {
		ratio = float64(s.FileSize) / float64(inputSize)
	}
	fmt.Fprintf(w, "\n  File size: %s (%.2fx input)\n", Bytes(s.FileSize), ratio)
	fmt.Fprintf(w, "  Row count: %s\n\n", humanize.Comma(s.Rows))
	WriteLatency(w, st, 4)
	fmt.Fprintf(w, "\n  Throughput: %s, %s\n", ByteRate(s.FileSize, st.Mean), RowRate(s.Rows, st.Mean))
	return nil
}

// WriteComparison writes a table comparing engines by mean latency and file
// size. Nothing is written for fewer than two results.
func WriteComparison(w io.Writer, results []Scan) {
	if len(results) < 2 {
		return
	}

	fastest := slices.MinFunc(results, func(a, b Scan) int { return cmp.Compare(a.Mean(), b.Mean()) })
	smallest := slices.MinFunc(results, func(a, b Scan) int { return cmp.Compare(a.FileSize, b.FileSize) })

	fmt.Fprintf(w, "\n%s\nCOMPARISON SUMMARY\n%s\n\n", Rule(70), Rule(70))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "  Engine\tMean (s)\tvs Fastest\tFile Size\t\n")
	for _, r := range results {
		vs := 0.0
		if fastest.Mean() > 0 {
			vs = r.Mean() / fastest.Mean()
		}
		fmt.Fprintf(tw, "  %s\t%.4f\t%.2fx\t%s\t\n", r.Engine, r.Mean(), vs, Bytes(r.FileSize))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n  Fastest: %s (%.4fs mean)\n", fastest.Engine, fastest.Mean())
	fmt.Fprintf(w, "  Smallest: %s (%s)\n", smallest.Engine, Bytes(smallest.FileSize))
}
