// Package engine defines the storage backend contract used by the benchmark.
//
// An Engine materializes and opens datasets of fixed-dimension float32
// vectors. A Handle serves point lookups (Take) and full scans (Scan) and is
// safe for concurrent use by many goroutines. Results are Arrow records with a
// single FixedSizeList<float32> column named "vector".
//
// Datasets live at a URI (local path, file://, s3:// or minio://) under
// "data.<ext>", where the extension is chosen by the engine.
//
// Backends live in subpackages (parquet, arrowipc, columnar, sqlite) and are
// collected into an immutable Registry.
package engine
