package dispatch

import (
	"log/slog"
	"sync/atomic"
)

// Progress is notified once per completed task.
type Progress interface {
	Add(n int)
}

type nopProgress struct{}

func (nopProgress) Add(int) {}

// LogProgress logs through slog each time another tenth of the total completes.
type LogProgress struct {
	logger *slog.Logger
	label  string
	total  int64
	done   atomic.Int64
}

// NewLogProgress creates a Progress for total tasks.
func NewLogProgress(logger *slog.Logger, label string, total int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, label: label, total: int64(total)}
}

func (p *LogProgress) Add(n int) {
	if p.total <= 0 || n <= 0 {
		return
	}
	now := p.done.Add(int64(n))
	prev := now - int64(n)
	if decile(now, p.total) > decile(prev, p.total) {
		p.logger.Info("progress",
			"label", p.label,
			"done", now,
			"total", p.total,
			"percent", min(now*100/p.total, 100),
		)
	}
}

// Done returns the number of tasks reported so far.
func (p *LogProgress) Done() int64 { return p.done.Load() }

func decile(n, total int64) int64 {
	return min(n*10/total, 10)
}
