package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets spans 50µs to ~100s.
var latencyBuckets = prometheus.ExponentialBuckets(0.00005, 2.5, 16)

// Prometheus exports measurements as Prometheus metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	takeDuration *prometheus.HistogramVec
	takeFailures *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanFailures *prometheus.CounterVec
	rowsRead     *prometheus.CounterVec
	droppedFiles *prometheus.CounterVec
	droppedBytes *prometheus.CounterVec
	dropFailures *prometheus.CounterVec
}

// NewPrometheus creates a collector registered on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		takeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colbench_take_duration_seconds",
				Help:    "Latency of take queries in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"engine", "phase"},
		),
		takeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_take_failures_total",
				Help: "Total number of failed take queries",
			},
			[]string{"engine", "phase"},
		),
		scanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colbench_scan_duration_seconds",
				Help:    "Latency of full scans in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"engine", "phase"},
		),
		scanFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_scan_failures_total",
				Help: "Total number of failed scans",
			},
			[]string{"engine", "phase"},
		),
		rowsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_rows_read_total",
				Help: "Total number of rows returned by takes and scans",
			},
			[]string{"engine", "operation"},
		),
		droppedFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_cache_dropped_files_total",
				Help: "Total number of files evicted from the page cache",
			},
			[]string{"engine"},
		),
		droppedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_cache_dropped_bytes_total",
				Help: "Total number of bytes evicted from the page cache",
			},
			[]string{"engine"},
		),
		dropFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colbench_cache_drop_failures_total",
				Help: "Total number of failed page cache evictions",
			},
			[]string{"engine"},
		),
	}
}

// RecordTake implements Collector.
func (p *Prometheus) RecordTake(engine, phase string, d time.Duration, rows int64, err error) {
	p.takeDuration.WithLabelValues(engine, phase).Observe(d.Seconds())
	if err != nil {
		p.takeFailures.WithLabelValues(engine, phase).Inc()
		return
	}
	p.rowsRead.WithLabelValues(engine, "take").Add(float64(rows))
}

// RecordScan implements Collector.
func (p *Prometheus) RecordScan(engine, phase string, d time.Duration, rows int64, err error) {
	p.scanDuration.WithLabelValues(engine, phase).Observe(d.Seconds())
	if err != nil {
		p.scanFailures.WithLabelValues(engine, phase).Inc()
		return
	}
	p.rowsRead.WithLabelValues(engine, "scan").Add(float64(rows))
}

// RecordCacheDrop implements Collector.
func (p *Prometheus) RecordCacheDrop(engine string, files int, bytes int64, err error) {
	if err != nil {
		p.dropFailures.WithLabelValues(engine).Inc()
		return
	}
	p.droppedFiles.WithLabelValues(engine).Add(float64(files))
	p.droppedBytes.WithLabelValues(engine).Add(float64(bytes))
}

// Registry returns the registry the metrics are registered on.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns the HTTP handler for /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics in the text exposition format to path,
// for pickup by the node exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}
