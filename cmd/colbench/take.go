package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/colbench/config"
)

func newTakeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Benchmark random-access takes against one engine",
		Long: `Writes one dataset per --dataset-uri (reusing datasets that already hold
--rows-per-dataset rows), then issues --num-queries sorted random row
selections concurrently and reports latency percentiles and throughput.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			v, err := g.viperFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadTake(v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			e, err := newEnv(ctx, cfg.Common)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := e.close(ctx); err == nil {
					err = cerr
				}
			}()

			_, err = e.bench.RunTake(ctx, cfg)
			return err
		},
	}

	d := config.DefaultTake()
	fs := cmd.Flags()
	commonFlags(fs)
	fs.String("engine", d.Engine, "Storage engine (see 'colbench engines')")
	fs.Int64("rows-per-dataset", d.RowsPerDataset, "Rows written to each dataset")
	fs.Int("write-batch-size", d.WriteBatchSize, "Rows per write batch")
	fs.Int("vector-dim", d.VectorDim, "Vector dimension")
	fs.Int("num-queries", d.NumQueries, "Number of take queries per phase")
	fs.Int("rows-per-query", d.RowsPerQuery, "Rows selected by each query")
	fs.Int("num-runtimes", d.NumRuntimes, "Number of workers")
	fs.Int("concurrent-queries", d.ConcurrentQueries, "In-flight queries per worker")
	fs.StringSlice("dataset-uri", d.DatasetURIs, "Dataset base URIs; queries are spread round-robin")
	fs.Bool("skip-warmup", d.SkipWarmup, "Skip the warmup phase")
	fs.Int("warmup-passes", d.WarmupPasses, "Number of warmup passes over the query set")
	fs.Bool("skip-cache-drop", d.SkipCacheDrop, "Do not evict datasets from caches before the timed phase")
	fs.String("failure-policy", d.FailurePolicy, "Failed queries: zero (record 0s latency) or exclude")
	fs.Bool("unique-indices", d.UniqueIndices, "Draw row indices without replacement")
	fs.Int64("seed", d.Seed, "Seed for data and query generation")
	fs.Float64("target-qps", d.TargetQPS, "Throttle query submission (0 = unlimited)")
	return cmd
}
