// Package datagen generates the synthetic datasets and query workloads used
// by the benchmarks.
//
// Vectors are drawn from a standard normal distribution. Generation is fully
// deterministic for a given seed, so a dataset written by one engine can be
// regenerated bit-for-bit for another.
//
//	src := datagen.NewGaussian(datagen.Config{Rows: 1_000_000, BatchSize: 100_000, Dim: 768, Seed: 42})
//	h, err := eng.Write(ctx, uri, src)
//
//	queries := datagen.Queries(datagen.NewRNG(7), datagen.QueryConfig{
//	    NumQueries: 2000, RowsPerQuery: 500, MaxRow: 1_000_000,
//	})
package datagen
