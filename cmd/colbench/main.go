// Command colbench benchmarks random-access takes and full scans over
// columnar vector datasets.
//
// Usage:
//
//	colbench take --engine parquet --dataset-uri /data/a,/data/b
//	colbench scan --input vectors.parquet --engines all
//	colbench engines
//
// Every flag can also be set in a config file (--config) or through
// COLBENCH_* environment variables, e.g. COLBENCH_NUM_QUERIES=500.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/colbench"
	"github.com/hupe1980/colbench/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var ce *config.Error
	if colbench.IsConfigError(err) || errors.As(err, &ce) || errors.Is(err, errUsage) {
		return exitConfig
	}
	return exitFailed
}
