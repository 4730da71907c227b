// Package colbench benchmarks random-access takes and full scans over
// columnar vector datasets stored in different formats.
//
// # Quick Start
//
//	stores := engine.NewStores(engine.StoreOptions{})
//	b, _ := colbench.New(stores, colbench.WithLogger(colbench.NewTextLogger(slog.LevelInfo)))
//
//	cfg := config.DefaultTake()
//	cfg.Engine = "parquet"
//	res, err := b.RunTake(ctx, cfg)
//
// A take run writes one dataset per configured URI (or reuses it when it
// already holds the expected rows), draws sorted random row selections and
// issues them concurrently through a dispatch.Dispatcher. Latencies of the
// timed phase are summarized by the stats package.
//
// A scan run converts an input file (Parquet, Arrow IPC, CSV or JSON) to
// every selected engine and times full scans of each.
//
// # Engines
//
// The built-in engines are:
//
//   - columnar, columnar-lz4, columnar-zstd, columnar-snappy: block-compressed
//     fixed-width vector files.
//   - parquet, parquet-async: Parquet files read row group by row group.
//   - arrow: Arrow IPC files.
//   - sqlite: one BLOB row per vector.
//
// Datasets may live on local disk (file:// or plain paths), S3 (s3://) or
// MinIO (minio://).
//
// # Errors
//
// Invalid settings are reported as *ConfigError before any work starts.
// A dataset returning the wrong number of rows yields *RowCountError.
// Individual take failures never abort a run; they are counted and handled
// according to the configured dispatch.FailurePolicy.
package colbench
