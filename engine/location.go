package engine

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/blobstore/minio"
	"github.com/hupe1980/colbench/blobstore/s3"
	"github.com/hupe1980/colbench/internal/cache"
)

// Scheme is the storage scheme of a dataset URI.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeMinIO Scheme = "minio"
)

// Location is a parsed dataset URI.
type Location struct {
	Scheme Scheme
	// Path is the local directory for SchemeFile.
	Path string
	// Endpoint is host:port for SchemeMinIO.
	Endpoint string
	Bucket   string
	Prefix   string
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemeS3:
		return "s3://" + l.Bucket + "/" + l.Prefix
	case SchemeMinIO:
		return "minio://" + l.Endpoint + "/" + l.Bucket + "/" + l.Prefix
	default:
		return l.Path
	}
}

// Local reports whether the dataset lives on the local filesystem.
func (l Location) Local() bool { return l.Scheme == SchemeFile }

// ParseURI parses a dataset URI: a plain path, file://, s3://bucket/prefix
// or minio://host:port/bucket/prefix.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("engine: empty dataset uri")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Path: filepath.Clean(uri)}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("engine: parse uri %q: %w", uri, err)
	}

	switch Scheme(u.Scheme) {
	case SchemeFile:
		p := u.Path
		if u.Host != "" && u.Host != "localhost" {
			// file://relative/dir
			p = u.Host + p
		}
		if p == "" {
			return Location{}, fmt.Errorf("engine: file uri %q has no path", uri)
		}
		return Location{Scheme: SchemeFile, Path: filepath.Clean(p)}, nil
	case SchemeS3:
		if u.Host == "" {
			return Location{}, fmt.Errorf("engine: s3 uri %q has no bucket", uri)
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case SchemeMinIO:
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return Location{}, fmt.Errorf("engine: minio uri %q needs host and bucket", uri)
		}
		return Location{Scheme: SchemeMinIO, Endpoint: u.Host, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
	default:
		return Location{}, fmt.Errorf("%w: uri scheme %q", ErrUnsupported, u.Scheme)
	}
}

// StoreOptions configures the blob stores opened for dataset URIs.
type StoreOptions struct {
	// ReadMode selects pread or mmap for local datasets.
	ReadMode blobstore.ReadMode
	// BlockCacheBytes enables an in-process block cache for remote
	// datasets when positive.
	BlockCacheBytes int64

	S3Region   string
	S3Endpoint string

	MinIOAccessKey string
	MinIOSecretKey string
	MinIOSecure    bool
}

// Stores opens blob stores for dataset URIs. Remote stores share one block
// cache when StoreOptions.BlockCacheBytes is positive.
type Stores struct {
	opts  StoreOptions
	cache cache.BlockCache
}

// NewStores creates a resolver.
func NewStores(opts StoreOptions) *Stores {
	s := &Stores{opts: opts}
	if opts.BlockCacheBytes > 0 {
		s.cache = cache.NewShardedLRU(opts.BlockCacheBytes)
	}
	return s
}

// Options returns the options the resolver was created with.
func (s *Stores) Options() StoreOptions { return s.opts }

// Open returns a blob store rooted at the dataset location.
func (s *Stores) Open(ctx context.Context, uri string) (blobstore.Store, Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, Location{}, err
	}

	var store blobstore.Store
	switch loc.Scheme {
	case SchemeFile:
		return blobstore.NewLocalStore(loc.Path, blobstore.WithReadMode(s.opts.ReadMode)), loc, nil
	case SchemeS3:
		store, err = s3.New(ctx, loc.Bucket, loc.Prefix, s3.Options{
			Region:   s.opts.S3Region,
			Endpoint: s.opts.S3Endpoint,
		})
	case SchemeMinIO:
		store, err = minio.New(loc.Endpoint, loc.Bucket, loc.Prefix, minio.Options{
			AccessKey: s.opts.MinIOAccessKey,
			SecretKey: s.opts.MinIOSecretKey,
			Secure:    s.opts.MinIOSecure,
		})
	}
	if err != nil {
		return nil, Location{}, err
	}

	if s.cache != nil {
		store = blobstore.NewCachingStore(store, s.cache, blobstore.DefaultBlockSize,
			blobstore.WithNamespace(loc.String()+"/"))
	}
	return store, loc, nil
}

// CacheStats returns hits and misses of the shared block cache.
func (s *Stores) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// DataFile returns the blob name of a dataset with the given extension.
func DataFile(ext string) string {
	return "data." + ext
}

// DropStoreCache evicts the dataset blob from store caches.
func DropStoreCache(ctx context.Context, store blobstore.Store) (blobstore.CacheStats, error) {
	return blobstore.DropCache(ctx, store, "")
}
