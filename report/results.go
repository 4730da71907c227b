// Package report renders benchmark results as text and as JSON records for
// regression tooling.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/colbench/codec"
	"github.com/hupe1980/colbench/stats"
)

// Units of Record.Values.
const UnitsSeconds = "seconds"

// DUT identifies the device under test.
type DUT struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// Summary aggregates the measured values of a Record.
type Summary struct {
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	P50        float64 `json:"p50"`
	P95        float64 `json:"p95"`
	P99        float64 `json:"p99"`
	N          int     `json:"n"`
	Failures   int     `json:"failures"`
	Throughput float64 `json:"throughput"`
}

// NewSummary converts latency statistics.
func NewSummary(s stats.Statistics, failures int, throughput float64) Summary {
	return Summary{
		Mean:       s.Mean,
		Std:        s.Std,
		Min:        s.Min,
		Max:        s.Max,
		P50:        s.P50,
		P95:        s.P95,
		P99:        s.P99,
		N:          s.N,
		Failures:   failures,
		Throughput: throughput,
	}
}

// Record is one benchmark result. Files hold one Record per line.
type Record struct {
	BenchmarkName string         `json:"benchmark_name"`
	RunID         string         `json:"run_id"`
	DUT           DUT            `json:"dut"`
	Summary       Summary        `json:"summary"`
	Units         string         `json:"units"`
	Values        []float64      `json:"values,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	Timestamp     int64          `json:"timestamp"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string { return uuid.NewString() }

// NewRecord creates a Record stamped with now.
func NewRecord(name, runID string, dut DUT, summary Summary, values []float64, params map[string]any) Record {
	return Record{
		BenchmarkName: name,
		RunID:         runID,
		DUT:           dut,
		Summary:       summary,
		Units:         UnitsSeconds,
		Values:        values,
		Params:        params,
		Timestamp:     time.Now().Unix(),
	}
}

// AppendResults appends records to the file at path, creating it if needed.
func AppendResults(path string, records ...Record) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteResults(f, records...)
}

// WriteResults writes records as JSON lines.
func WriteResults(w io.Writer, records ...Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		b, err := codec.Default.Marshal(r)
		if err != nil {
			return fmt.Errorf("report: encode %s: %w", r.BenchmarkName, err)
		}
		if _, err := bw.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadResults reads JSON-lines records.
func ReadResults(r io.Reader) ([]Record, error) {
	dec := codec.Default.NewDecoder(r)
	var out []Record
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("report: decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, nil
}
