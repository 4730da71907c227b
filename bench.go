package colbench

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/colbench/config"
	"github.com/hupe1980/colbench/datagen"
	"github.com/hupe1980/colbench/dispatch"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/input"
	"github.com/hupe1980/colbench/report"
	"github.com/hupe1980/colbench/stats"
)

// Bench runs take and scan benchmarks against the registered engines.
type Bench struct {
	stores   *engine.Stores
	registry *engine.Registry
	opts     options
}

// New creates a Bench with every built-in engine bound to stores.
func New(stores *engine.Stores, optFns ...Option) (*Bench, error) {
	if stores == nil {
		stores = engine.NewStores(engine.StoreOptions{})
	}
	reg, err := NewRegistry(stores)
	if err != nil {
		return nil, err
	}
	return NewWithRegistry(stores, reg, optFns...), nil
}

// NewWithRegistry creates a Bench over a custom engine set.
func NewWithRegistry(stores *engine.Stores, reg *engine.Registry, optFns ...Option) *Bench {
	o := applyOptions(optFns)
	if o.runID == "" {
		o.runID = report.NewRunID()
	}
	return &Bench{stores: stores, registry: reg, opts: o}
}

// Registry returns the engines known to b.
func (b *Bench) Registry() *engine.Registry { return b.registry }

// RunID returns the identifier stamped on result records.
func (b *Bench) RunID() string { return b.opts.runID }

// DatasetURI returns the location of an engine's copy of the dataset at base.
func DatasetURI(base, engineName string) string {
	return strings.TrimRight(base, "/") + "/" + engineName
}

// TakeResult is the outcome of a take benchmark.
type TakeResult struct {
	Engine     string
	URIs       []string
	Warmup     []*dispatch.Result
	Timed      *dispatch.Result
	Stats      stats.Statistics
	Throughput float64
}

// RunTake prepares one dataset per configured URI, then runs the warmup and
// timed take phases. A cancelled run returns the partial result together with
// the context error.
func (b *Bench) RunTake(ctx context.Context, cfg config.Take) (*TakeResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError(err)
	}
	eng, ok := b.registry.Get(cfg.Engine)
	if !ok {
		return nil, NewConfigError(fmt.Errorf("%w %q (available: %s)",
			ErrUnknownEngine, cfg.Engine, strings.Join(b.registry.Names(), ", ")))
	}

	log := b.opts.logger.WithEngine(eng.Name())
	log.InfoContext(ctx, "take benchmark",
		"datasets", len(cfg.DatasetURIs),
		"rows_per_dataset", cfg.RowsPerDataset,
		"vector_dim", cfg.VectorDim,
		"num_queries", cfg.NumQueries,
		"rows_per_query", cfg.RowsPerQuery,
		"workers", cfg.NumRuntimes,
		"concurrency", cfg.ConcurrentQueries,
	)

	res := &TakeResult{Engine: eng.Name()}
	handles := make([]engine.Handle, 0, len(cfg.DatasetURIs))
	defer func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}()

	for i, base := range cfg.DatasetURIs {
		uri := DatasetURI(base, eng.Name())
		res.URIs = append(res.URIs, uri)

		src := datagen.NewGaussian(datagen.Config{
			Rows:      cfg.RowsPerDataset,
			BatchSize: cfg.WriteBatchSize,
			Dim:       cfg.VectorDim,
			Seed:      datagen.DeriveSeed(cfg.Seed, uri),
		})
		h, err := b.prepare(ctx, log.WithDataset(i, uri), eng, uri, src)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	queries, err := datagen.Queries(datagen.NewRNG(datagen.DeriveSeed(cfg.Seed, "queries")), datagen.QueryConfig{
		NumQueries:   cfg.NumQueries,
		RowsPerQuery: cfg.RowsPerQuery,
		MaxRow:       uint64(cfg.RowsPerDataset), //nolint:gosec
		Unique:       cfg.UniqueIndices,
	})
	if err != nil {
		return nil, NewConfigError(err)
	}
	tasks := dispatch.BuildTasks(queries, len(handles))

	datasets := make([]dispatch.Dataset, len(handles))
	for i, h := range handles {
		datasets[i] = h
	}
	dcfg := dispatch.Config{
		Workers:       cfg.NumRuntimes,
		Concurrency:   cfg.ConcurrentQueries,
		FailurePolicy: cfg.Policy(),
		TargetQPS:     cfg.TargetQPS,
		Engine:        eng.Name(),
	}

	if !cfg.SkipWarmup {
		for pass := range cfg.WarmupPasses {
			r, err := b.runPhase(ctx, log, datasets, dcfg, tasks, dispatch.PhaseWarmup)
			if r != nil {
				res.Warmup = append(res.Warmup, r)
			}
			if err != nil {
				return res, fmt.Errorf("warmup pass %d: %w", pass, err)
			}
		}
	}

	if !cfg.SkipCacheDrop {
		for i, h := range handles {
			b.dropCache(ctx, log.WithDataset(i, res.URIs[i]), eng, res.URIs[i], h.Size())
		}
	}

	timed, err := b.runPhase(ctx, log, datasets, dcfg, tasks, dispatch.PhaseTimed)
	res.Timed = timed
	if timed == nil {
		return nil, err
	}
	res.Throughput = timed.Throughput()

	st, serr := stats.Compute(timed.Latencies)
	if serr != nil && err == nil {
		return res, fmt.Errorf("timed phase: %w", serr)
	}
	res.Stats = st
	if err != nil {
		return res, err
	}

	report.WriteTake(b.opts.out, report.Take{
		Engine:     eng.Name(),
		Datasets:   len(handles),
		Queries:    timed.Completed,
		Failures:   timed.Failures,
		Stats:      st,
		Throughput: res.Throughput,
		Rows:       timed.Rows,
		TotalRows:  dispatch.TotalRows(),
	})

	if cfg.ResultsFile != "" {
		rec := report.NewRecord("take_"+eng.Name(), b.opts.runID, b.dut(eng.Name()),
			report.NewSummary(st, timed.Failures, res.Throughput), timed.Latencies, takeParams(cfg))
		if err := report.AppendResults(cfg.ResultsFile, rec); err != nil {
			return res, fmt.Errorf("write results: %w", err)
		}
	}
	return res, nil
}

func (b *Bench) runPhase(ctx context.Context, log *Logger, datasets []dispatch.Dataset, cfg dispatch.Config,
	tasks []dispatch.Task, phase dispatch.Phase) (*dispatch.Result, error) {
	plog := log.WithPhase(phase.String())

	opts := []dispatch.Option{
		dispatch.WithLogger(plog.Logger),
		dispatch.WithMetrics(b.opts.metrics),
	}
	if b.opts.progress {
		opts = append(opts, dispatch.WithProgress(dispatch.NewLogProgress(plog.Logger, phase.String(), len(tasks))))
	}
	d, err := dispatch.New(datasets, cfg, opts...)
	if err != nil {
		return nil, NewConfigError(err)
	}

	plog.InfoContext(ctx, "phase started", "queries", len(tasks))
	r, err := d.Run(ctx, tasks, phase)
	if r != nil {
		plog.LogPhase(ctx, r.Completed, r.Failures, r.Elapsed)
	}
	return r, err
}

// prepare opens the dataset at uri when it holds the expected row count and
// writes it from src otherwise.
func (b *Bench) prepare(ctx context.Context, log *Logger, eng engine.Engine, uri string, src engine.BatchSource) (engine.Handle, error) {
	want := src.NumRows()
	stage := "open"

	var (
		h   engine.Handle
		err error
	)
	if eng.Exists(ctx, uri, want) {
		h, err = eng.Open(ctx, uri)
		if err != nil {
			log.LogOpen(ctx, 0, 0, err)
			return nil, err
		}
		log.LogOpen(ctx, h.NumRows(), h.Size(), nil)
	} else {
		stage = "write"
		start := time.Now()
		h, err = eng.Write(ctx, uri, src)
		log.LogWrite(ctx, want, time.Since(start), err)
		if err != nil {
			return nil, err
		}
	}

	if got := h.NumRows(); got != want {
		_ = h.Close()
		return nil, &RowCountError{Engine: eng.Name(), Stage: stage, Got: got, Want: want}
	}
	return h, nil
}

func (b *Bench) dropCache(ctx context.Context, log *Logger, eng engine.Engine, uri string, size int64) {
	err := eng.DropCache(ctx, uri)
	log.LogCacheDrop(ctx, err)
	b.opts.metrics.RecordCacheDrop(eng.Name(), 1, size, err)
}

func (b *Bench) dut(name string) report.DUT {
	return report.DUT{Name: name, Version: b.opts.version, Timestamp: time.Now().Unix()}
}

// ScanResult is the outcome of a scan benchmark.
type ScanResult struct {
	InputPath string
	InputSize int64
	Rows      int64
	Engines   []report.Scan
	Skipped   []string
}

// RunScan converts the input to every selected engine's format and times
// full scans of each. Unknown engine names are logged and skipped.
func (b *Bench) RunScan(ctx context.Context, cfg config.Scan) (*ScanResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError(err)
	}

	engines, unknown := b.registry.Resolve(cfg.Engines)
	for _, name := range unknown {
		b.opts.logger.WarnContext(ctx, "unknown engine, skipping",
			"engine", name,
			"available", strings.Join(b.registry.Names(), ", "),
		)
	}
	if len(engines) == 0 {
		return nil, NewConfigError(fmt.Errorf("%w: none of %q", ErrUnknownEngine, cfg.Engines))
	}

	res := &ScanResult{InputPath: cfg.Input, Skipped: unknown}
	var newSource func() engine.BatchSource
	if cfg.Input != "" {
		in, err := input.Load(ctx, cfg.Input)
		if err != nil {
			return nil, err
		}
		b.opts.logger.InfoContext(ctx, "input loaded",
			"path", in.Path,
			"format", in.Format,
			"rows", in.Rows,
			"dim", in.Dim,
			"bytes", in.FileSize,
		)
		res.InputSize = in.FileSize
		res.Rows = in.Rows
		newSource = func() engine.BatchSource { return in.Source(cfg.WriteBatchSize) }
	} else {
		gcfg := datagen.Config{Rows: cfg.Rows, BatchSize: cfg.WriteBatchSize, Dim: cfg.VectorDim, Seed: cfg.Seed}
		res.InputSize = cfg.Rows * int64(cfg.VectorDim) * 4
		res.Rows = cfg.Rows
		newSource = func() engine.BatchSource { return datagen.NewGaussian(gcfg) }
	}

	for _, eng := range engines {
		s, err := b.scanEngine(ctx, cfg, eng, newSource())
		if err != nil {
			return res, err
		}
		res.Engines = append(res.Engines, s)

		report.Section(b.opts.out, "Engine: "+eng.Name())
		if err := report.WriteScan(b.opts.out, s, res.InputSize); err != nil {
			return res, err
		}
	}
	report.WriteComparison(b.opts.out, res.Engines)

	if cfg.ResultsFile != "" {
		records := make([]report.Record, 0, len(res.Engines))
		for _, s := range res.Engines {
			st, err := stats.Compute(s.Latencies)
			if err != nil {
				return res, err
			}
			tput := stats.Throughput(len(s.Latencies), sum(s.Latencies))
			records = append(records, report.NewRecord("scan_"+s.Engine, b.opts.runID, b.dut(s.Engine),
				report.NewSummary(st, 0, tput), s.Latencies, scanParams(cfg, s)))
		}
		if err := report.AppendResults(cfg.ResultsFile, records...); err != nil {
			return res, fmt.Errorf("write results: %w", err)
		}
	}
	return res, nil
}

func (b *Bench) scanEngine(ctx context.Context, cfg config.Scan, eng engine.Engine, src engine.BatchSource) (report.Scan, error) {
	uri := DatasetURI(cfg.OutputDir, eng.Name())
	log := b.opts.logger.WithEngine(eng.Name())

	h, err := b.prepare(ctx, log, eng, uri, src)
	if err != nil {
		return report.Scan{}, err
	}
	defer h.Close()

	want := h.NumRows()
	scan := func(phase string) (time.Duration, error) {
		start := time.Now()
		n, err := h.Scan(ctx)
		elapsed := time.Since(start)
		b.opts.metrics.RecordScan(eng.Name(), phase, elapsed, n, err)
		if err != nil {
			return elapsed, fmt.Errorf("%s scan: %w", phase, err)
		}
		if n != want {
			return elapsed, &RowCountError{Engine: eng.Name(), Stage: phase, Got: n, Want: want}
		}
		return elapsed, nil
	}

	if !cfg.SkipWarmup {
		for range cfg.WarmupIterations {
			if _, err := scan(dispatch.PhaseWarmup.String()); err != nil {
				return report.Scan{}, err
			}
		}
	}
	if !cfg.SkipCacheDrop {
		b.dropCache(ctx, log, eng, uri, h.Size())
	}

	latencies := make([]float64, 0, cfg.Iterations)
	for range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return report.Scan{}, err
		}
		elapsed, err := scan(dispatch.PhaseTimed.String())
		if err != nil {
			return report.Scan{}, err
		}
		latencies = append(latencies, elapsed.Seconds())
	}
	log.InfoContext(ctx, "scans completed", "iterations", len(latencies))

	return report.Scan{Engine: eng.Name(), FileSize: h.Size(), Rows: want, Latencies: latencies}, nil
}

// IsConfigError reports whether err stems from invalid settings.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func takeParams(cfg config.Take) map[string]any {
	return map[string]any{
		"engine":             cfg.Engine,
		"datasets":           len(cfg.DatasetURIs),
		"rows_per_dataset":   cfg.RowsPerDataset,
		"vector_dim":         cfg.VectorDim,
		"num_queries":        cfg.NumQueries,
		"rows_per_query":     cfg.RowsPerQuery,
		"num_runtimes":       cfg.NumRuntimes,
		"concurrent_queries": cfg.ConcurrentQueries,
		"failure_policy":     cfg.Policy().String(),
		"unique_indices":     cfg.UniqueIndices,
		"target_qps":         cfg.TargetQPS,
		"read_mode":          cfg.ReadMode,
	}
}

func scanParams(cfg config.Scan, s report.Scan) map[string]any {
	return map[string]any{
		"engine":     s.Engine,
		"input":      cfg.Input,
		"rows":       s.Rows,
		"file_size":  s.FileSize,
		"iterations": cfg.Iterations,
		"read_mode":  cfg.ReadMode,
	}
}
