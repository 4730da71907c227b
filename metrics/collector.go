// Package metrics collects benchmark measurements for monitoring systems.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector receives one call per measured operation.
// Implementations must be safe for concurrent use.
type Collector interface {
	// RecordTake is called after each take query.
	// phase is "warmup" or "timed"; rows is the number of rows returned.
	RecordTake(engine, phase string, duration time.Duration, rows int64, err error)

	// RecordScan is called after each full scan.
	RecordScan(engine, phase string, duration time.Duration, rows int64, err error)

	// RecordCacheDrop is called after a dataset was evicted from the page cache.
	RecordCacheDrop(engine string, files int, bytes int64, err error)
}

// NoopCollector discards all measurements.
type NoopCollector struct{}

func (NoopCollector) RecordTake(string, string, time.Duration, int64, error) {}
func (NoopCollector) RecordScan(string, string, time.Duration, int64, error) {}
func (NoopCollector) RecordCacheDrop(string, int, int64, error)              {}

// BasicCollector keeps in-memory counters.
// Useful for tests and for printing totals without an external system.
type BasicCollector struct {
	TakeCount      atomic.Int64
	TakeErrors     atomic.Int64
	TakeRows       atomic.Int64
	TakeTotalNanos atomic.Int64
	ScanCount      atomic.Int64
	ScanErrors     atomic.Int64
	ScanRows       atomic.Int64
	ScanTotalNanos atomic.Int64
	DroppedFiles   atomic.Int64
	DroppedBytes   atomic.Int64
	DropErrors     atomic.Int64
}

// RecordTake implements Collector.
func (b *BasicCollector) RecordTake(_, _ string, duration time.Duration, rows int64, err error) {
	b.TakeCount.Add(1)
	b.TakeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TakeErrors.Add(1)
		return
	}
	b.TakeRows.Add(rows)
}

// RecordScan implements Collector.
func (b *BasicCollector) RecordScan(_, _ string, duration time.Duration, rows int64, err error) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
		return
	}
	b.ScanRows.Add(rows)
}

// RecordCacheDrop implements Collector.
func (b *BasicCollector) RecordCacheDrop(_ string, files int, bytes int64, err error) {
	if err != nil {
		b.DropErrors.Add(1)
		return
	}
	b.DroppedFiles.Add(int64(files))
	b.DroppedBytes.Add(bytes)
}

// Stats returns a snapshot of the counters.
func (b *BasicCollector) Stats() BasicStats {
	return BasicStats{
		TakeCount:    b.TakeCount.Load(),
		TakeErrors:   b.TakeErrors.Load(),
		TakeRows:     b.TakeRows.Load(),
		TakeAvgNanos: avg(b.TakeTotalNanos.Load(), b.TakeCount.Load()),
		ScanCount:    b.ScanCount.Load(),
		ScanErrors:   b.ScanErrors.Load(),
		ScanRows:     b.ScanRows.Load(),
		ScanAvgNanos: avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
		DroppedFiles: b.DroppedFiles.Load(),
		DroppedBytes: b.DroppedBytes.Load(),
		DropErrors:   b.DropErrors.Load(),
	}
}

// BasicStats is a point-in-time snapshot of a BasicCollector.
type BasicStats struct {
	TakeCount    int64
	TakeErrors   int64
	TakeRows     int64
	TakeAvgNanos int64
	ScanCount    int64
	ScanErrors   int64
	ScanRows     int64
	ScanAvgNanos int64
	DroppedFiles int64
	DroppedBytes int64
	DropErrors   int64
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// Multi fans out every measurement to all collectors.
type Multi []Collector

func (m Multi) RecordTake(engine, phase string, d time.Duration, rows int64, err error) {
	for _, c := range m {
		c.RecordTake(engine, phase, d, rows, err)
	}
}

func (m Multi) RecordScan(engine, phase string, d time.Duration, rows int64, err error) {
	for _, c := range m {
		c.RecordScan(engine, phase, d, rows, err)
	}
}

func (m Multi) RecordCacheDrop(engine string, files int, bytes int64, err error) {
	for _, c := range m {
		c.RecordCacheDrop(engine, files, bytes, err)
	}
}
