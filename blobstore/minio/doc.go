// Package minio implements blobstore.Store with the MinIO client.
//
// It works against MinIO and other S3-compatible services (Ceph, Garage,
// SeaweedFS) without pulling in the AWS SDK credential chain.
//
//	store, err := minio.New("localhost:9000", "bench", "datasets", minio.Options{
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	})
//
// Dataset URIs of the form minio://host:port/bucket/prefix resolve to this store.
package minio
