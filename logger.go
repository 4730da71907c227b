package colbench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with benchmark-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewLoggerFor creates a Logger writing to w in the given format ("text" or
// "json") at the given level ("debug", "info", "warn", "error").
func NewLoggerFor(w io.Writer, format, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel parses a level name. The empty string selects info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithEngine adds an engine field to the logger.
func (l *Logger) WithEngine(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("engine", name),
	}
}

// WithDataset adds dataset index and URI fields to the logger.
func (l *Logger) WithDataset(index int, uri string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", index, "uri", uri),
	}
}

// WithPhase adds a phase field to the logger.
func (l *Logger) WithPhase(phase string) *Logger {
	return &Logger{
		Logger: l.Logger.With("phase", phase),
	}
}

// LogWrite logs a dataset write.
func (l *Logger) LogWrite(ctx context.Context, rows int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "dataset written",
			"rows", rows,
			"elapsed", elapsed,
		)
	}
}

// LogOpen logs opening an existing dataset.
func (l *Logger) LogOpen(ctx context.Context, rows, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "dataset exists, opened",
			"rows", rows,
			"bytes", size,
		)
	}
}

// LogCacheDrop logs a page cache eviction. Failures are advisory.
func (l *Logger) LogCacheDrop(ctx context.Context, err error) {
	if err != nil {
		l.WarnContext(ctx, "cache drop failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache dropped")
	}
}

// LogPhase logs a completed benchmark phase.
func (l *Logger) LogPhase(ctx context.Context, completed, failures int, elapsed time.Duration) {
	if failures > 0 {
		l.WarnContext(ctx, "phase completed with failures",
			"completed", completed,
			"failures", failures,
			"elapsed", elapsed,
		)
	} else {
		l.InfoContext(ctx, "phase completed",
			"completed", completed,
			"elapsed", elapsed,
		)
	}
}
