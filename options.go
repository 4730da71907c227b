package colbench

import (
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/colbench/metrics"
)

type options struct {
	logger   *Logger
	metrics  metrics.Collector
	out      io.Writer
	runID    string
	version  string
	progress bool
}

// Option configures a Bench.
type Option func(*options)

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := colbench.NewJSONLogger(slog.LevelInfo)
//	b, _ := colbench.New(stores, colbench.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics configures the collector notified for every take, scan and
// cache drop. Pass nil to disable metrics collection.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		if c == nil {
			c = metrics.NoopCollector{}
		}
		o.metrics = c
	}
}

// WithOutput sets where human-readable reports are written. Default: stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w == nil {
			w = io.Discard
		}
		o.out = w
	}
}

// WithRunID sets the run identifier recorded in results files.
// By default every Bench gets a random one.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithVersion sets the version of the device under test recorded in results.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithProgress enables progress log lines every 10% of a phase.
func WithProgress(enabled bool) Option {
	return func(o *options) { o.progress = enabled }
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: metrics.NoopCollector{},
		out:     os.Stdout,
		version: "dev",
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
