// Package blobstore abstracts where dataset files live.
//
// Engines read datasets through Blob, which is an io.ReaderAt and therefore
// usable by format libraries that expect random access. Implementations must
// be safe for concurrent use; concurrent ReadAt calls on one Blob are the
// normal case during a take benchmark.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, pread or mmap reads
//   - MemoryStore: in-process maps, for tests
//   - CachingStore: block cache in front of another store
//   - s3.Store: Amazon S3 range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
package blobstore
