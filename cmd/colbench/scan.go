package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/colbench/config"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Convert an input file to each engine and benchmark full scans",
		Long: `Converts --input (Parquet, Arrow IPC, CSV or JSON) into every engine
listed in --engines under --output-dir, then times full scans of each and
prints a comparison. Without --input, --rows random vectors are generated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			v, err := g.viperFor(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadScan(v)
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

			_, err = e.bench.RunScan(ctx, cfg)
			return err
		},
	}

	d := config.DefaultScan()
	fs := cmd.Flags()
	commonFlags(fs)
	fs.StringP("input", "i", d.Input, "Input file (.parquet, .arrow, .csv, .json, .jsonl)")
	fs.String("engines", d.Engines, "Comma-separated engines, or all")
	fs.StringP("output-dir", "o", d.OutputDir, "Directory (or URI) for converted datasets")
	fs.Int("iterations", d.Iterations, "Timed scans per engine")
	fs.Int("warmup-iterations", d.WarmupIterations, "Warmup scans per engine")
	fs.Bool("skip-warmup", d.SkipWarmup, "Skip warmup scans")
	fs.Bool("skip-cache-drop", d.SkipCacheDrop, "Do not evict datasets from caches before timing")
	fs.Int64("rows", d.Rows, "Rows to generate without --input")
	fs.Int("vector-dim", d.VectorDim, "Vector dimension without --input")
	fs.Int("write-batch-size", d.WriteBatchSize, "Rows per write batch")
	fs.Int64("seed", d.Seed, "Seed for generated vectors")
	return cmd
}
