package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/colbench/metrics"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrRunning is returned when Run is called while another Run is active.
	ErrRunning = errors.New("dispatch: run already in progress")
	// ErrPanic wraps a panic recovered from Dataset.Take.
	ErrPanic = errors.New("dispatch: take panicked")
)

// totalRows counts rows returned by every dispatcher in the process.
// Only ever incremented, so readers may observe a slightly stale value.
var totalRows atomic.Int64

// TotalRows returns the number of rows taken by all dispatchers so far.
func TotalRows() int64 { return totalRows.Load() }

// Config sizes a Dispatcher.
type Config struct {
	// Workers is the number of workers pulling from the queue (W).
	Workers int
	// Concurrency is the number of in-flight takes per worker (C).
	Concurrency int
	// FailurePolicy decides what failed takes add to the timed sample.
	FailurePolicy FailurePolicy
	// TargetQPS throttles the total issue rate. Zero disables throttling.
	TargetQPS float64
	// Engine labels metrics and log lines.
	Engine string
}

// Validate reports whether the config is usable.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("dispatch: workers must be >= 1, got %d", c.Workers)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("dispatch: concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.TargetQPS < 0 {
		return fmt.Errorf("dispatch: target qps must be >= 0, got %g", c.TargetQPS)
	}
	switch c.FailurePolicy {
	case FailureAsZero, FailureExclude:
	default:
		return fmt.Errorf("dispatch: invalid failure policy %d", int(c.FailurePolicy))
	}
	return nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for failure and lifecycle lines.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the collector notified after every take.
func WithMetrics(c metrics.Collector) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.metrics = c
		}
	}
}

// WithProgress sets the progress sink notified after every task.
func WithProgress(p Progress) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.progress = p
		}
	}
}

// Dispatcher executes take tasks with W workers and C in-flight takes each.
// A Dispatcher can be reused for several runs but runs one at a time.
type Dispatcher struct {
	datasets []Dataset
	cfg      Config
	logger   *slog.Logger
	metrics  metrics.Collector
	progress Progress

	state atomic.Int32
	rows  atomic.Int64
	runMu sync.Mutex
}

// New creates a Dispatcher over datasets. Task.Dataset indexes into datasets.
func New(datasets []Dataset, cfg Config, opts ...Option) (*Dispatcher, error) {
	if len(datasets) == 0 {
		return nil, errors.New("dispatch: no datasets")
	}
	for i, ds := range datasets {
		if ds == nil {
			return nil, fmt.Errorf("dispatch: dataset %d is nil", i)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		datasets: datasets,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		metrics:  metrics.NoopCollector{},
		progress: nopProgress{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Rows returns the rows taken by this dispatcher across all runs.
func (d *Dispatcher) Rows() int64 { return d.rows.Load() }

// run is the shared state of one Run call.
type run struct {
	phase   Phase
	limiter *rate.Limiter

	mu        sync.Mutex
	latencies []float64

	completed atomic.Int64
	failures  atomic.Int64
	rows      atomic.Int64
}

// Run executes every task once and blocks until all of them completed or ctx
// was canceled. On cancellation no new take is issued, in-flight takes finish,
// and the partial result is returned together with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, tasks []Task, phase Phase) (*Result, error) {
	if !d.runMu.TryLock() {
		return nil, ErrRunning
	}
	defer d.runMu.Unlock()

	for i, t := range tasks {
		if t.Dataset < 0 || t.Dataset >= len(d.datasets) {
			return nil, fmt.Errorf("dispatch: task %d references dataset %d of %d", i, t.Dataset, len(d.datasets))
		}
	}

	d.setState(StateLoading)
	queue := make(chan Task, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	r := &run{phase: phase}
	if phase == PhaseTimed {
		r.latencies = make([]float64, 0, len(tasks))
	}
	if d.cfg.TargetQPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(d.cfg.TargetQPS), 1)
	}

	d.logger.Debug("dispatch started",
		"engine", d.cfg.Engine,
		"phase", phase.String(),
		"tasks", len(tasks),
		"workers", d.cfg.Workers,
		"concurrency", d.cfg.Concurrency,
	)

	d.setState(StateRunning)
	start := time.Now()

	var g errgroup.Group
	for w := range d.cfg.Workers {
		g.Go(func() error {
			return d.worker(ctx, w, queue, r)
		})
	}
	werr := g.Wait()
	elapsed := time.Since(start)

	d.setState(StateComplete)

	res := &Result{
		Phase:     phase,
		Completed: int(r.completed.Load()),
		Failures:  int(r.failures.Load()),
		Rows:      r.rows.Load(),
		Elapsed:   elapsed,
	}
	if phase == PhaseTimed {
		res.Latencies = r.latencies
	}

	d.logger.Debug("dispatch finished",
		"engine", d.cfg.Engine,
		"phase", phase.String(),
		"completed", res.Completed,
		"failures", res.Failures,
		"elapsed", elapsed,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, werr
}

// worker pulls tasks until the queue is drained or ctx is canceled.
// Takes run on a private pool of size C. A slot is acquired before a task is
// pulled, so a worker never holds a task it cannot start.
func (d *Dispatcher) worker(ctx context.Context, id int, queue <-chan Task, r *run) error {
	pool, err := ants.NewPool(d.cfg.Concurrency, ants.WithPanicHandler(func(v any) {
		d.logger.Error("worker pool panic", "worker", id, "panic", v)
	}))
	if err != nil {
		return fmt.Errorf("dispatch: worker %d: %w", id, err)
	}
	defer pool.Release()

	// In-flight takes are allowed to finish after cancellation.
	takeCtx := context.WithoutCancel(ctx)

	slots := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			d.drain()
			return nil
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			d.drain()
			return nil
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				<-slots
				d.drain()
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("dispatch: worker %d: %w", id, err)
			}
		}

		var (
			task Task
			ok   bool
		)
		select {
		case <-ctx.Done():
			<-slots
			d.drain()
			return nil
		case task, ok = <-queue:
		}
		if !ok {
			<-slots
			d.drain()
			return nil
		}

		wg.Add(1)
		run := func() {
			defer wg.Done()
			defer func() { <-slots }()
			d.execute(takeCtx, id, task, r)
		}
		if err := pool.Submit(run); err != nil {
			d.logger.Warn("pool submit failed, running inline", "worker", id, "error", err)
			run()
		}
	}
}

// drain moves a running dispatcher into the draining state.
func (d *Dispatcher) drain() {
	d.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
}

func (d *Dispatcher) execute(ctx context.Context, worker int, task Task, r *run) {
	start := time.Now()
	rows, err := d.take(ctx, task)
	elapsed := time.Since(start)

	r.completed.Add(1)
	if err != nil {
		r.failures.Add(1)
		d.logger.Warn("query failed",
			"worker", worker,
			"dataset", task.Dataset,
			"error", err,
		)
		if r.phase == PhaseTimed && d.cfg.FailurePolicy == FailureAsZero {
			r.record(0.0)
		}
	} else {
		r.rows.Add(rows)
		d.rows.Add(rows)
		totalRows.Add(rows)
		if r.phase == PhaseTimed {
			r.record(elapsed.Seconds())
		}
	}

	d.metrics.RecordTake(d.cfg.Engine, r.phase.String(), elapsed, rows, err)
	d.progress.Add(1)
}

func (d *Dispatcher) take(ctx context.Context, task Task) (rows int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			rows = 0
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	rec, err := d.datasets[task.Dataset].Take(ctx, task.Indices)
	if err != nil {
		if rec != nil {
			rec.Release()
		}
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	defer rec.Release()
	return rec.NumRows(), nil
}

func (r *run) record(seconds float64) {
	r.mu.Lock()
	r.latencies = append(r.latencies, seconds)
	r.mu.Unlock()
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}
