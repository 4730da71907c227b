package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/hupe1980/colbench"
	"github.com/hupe1980/colbench/config"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/metrics"
)

// env holds the runtime wiring derived from the shared settings.
type env struct {
	logger *colbench.Logger
	prom   *metrics.Prometheus
	totals *metrics.BasicCollector
	stores *engine.Stores
	bench  *colbench.Bench
	server *http.Server
	common config.Common
}

func newEnv(ctx context.Context, c config.Common) (*env, error) {
	logger, err := colbench.NewLoggerFor(os.Stderr, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, colbench.NewConfigError(err)
	}

	e := &env{
		logger: logger,
		prom:   metrics.NewPrometheus(),
		totals: &metrics.BasicCollector{},
		stores: engine.NewStores(c.StoreOptions()),
		common: c,
	}

	b, err := colbench.New(e.stores,
		colbench.WithLogger(logger),
		colbench.WithMetrics(metrics.Multi{e.prom, e.totals}),
		colbench.WithVersion(version),
		colbench.WithProgress(true),
	)
	if err != nil {
		return nil, err
	}
	e.bench = b

	if c.MetricsAddr != "" {
		ln, err := net.Listen("tcp", c.MetricsAddr)
		if err != nil {
			return nil, colbench.NewConfigError(err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", e.prom.Handler())
		e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorContext(ctx, "metrics server stopped", "error", err)
			}
		}()
		logger.InfoContext(ctx, "serving metrics", "addr", ln.Addr().String())
	}
	return e, nil
}

// close logs run totals, stops the metrics server and flushes the metrics
// textfile.
func (e *env) close(ctx context.Context) error {
	st := e.totals.Stats()
	hits, misses := e.stores.CacheStats()
	e.logger.InfoContext(ctx, "run totals",
		"takes", st.TakeCount,
		"take_errors", st.TakeErrors,
		"take_avg", time.Duration(st.TakeAvgNanos),
		"scans", st.ScanCount,
		"scan_errors", st.ScanErrors,
		"cache_drops", st.DroppedFiles,
		"cache_drop_errors", st.DropErrors,
		"block_cache_hits", hits,
		"block_cache_misses", misses,
	)

	var errs []error
	if e.server != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		errs = append(errs, e.server.Shutdown(sctx))
	}
	if e.common.MetricsFile != "" {
		errs = append(errs, e.prom.WriteTextfile(e.common.MetricsFile))
	}
	return errors.Join(errs...)
}
