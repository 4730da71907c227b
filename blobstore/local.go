package blobstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/colbench/internal/mmap"
	"github.com/hupe1980/colbench/internal/pagecache"
)

// ReadMode selects how LocalStore reads blobs.
type ReadMode int

const (
	// ReadModePread reads with pread(2) through os.File.ReadAt.
	ReadModePread ReadMode = iota
	// ReadModeMmap maps blobs into memory.
	ReadModeMmap
)

func (m ReadMode) String() string {
	if m == ReadModeMmap {
		return "mmap"
	}
	return "pread"
}

// ParseReadMode parses "pread" or "mmap". The empty string selects pread.
func ParseReadMode(s string) (ReadMode, error) {
	switch strings.ToLower(s) {
	case "", "pread":
		return ReadModePread, nil
	case "mmap":
		return ReadModeMmap, nil
	default:
		return ReadModePread, errors.New("blobstore: unknown read mode " + s)
	}
}

// LocalStore implements Store using the local file system.
type LocalStore struct {
	root string
	mode ReadMode
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithReadMode selects pread or mmap reads.
func WithReadMode(mode ReadMode) LocalOption {
	return func(s *LocalStore) { s.mode = mode }
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

// Path implements Locator.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path := s.Path(name)

	if s.mode == ReadModeMmap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		// Take queries jump around the file; disable read-ahead.
		_ = m.Advise(mmap.AdviceRandom)
		return &mmapBlob{m: m}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileBlob{f: f, size: fi.Size()}, nil
}

// Create creates a blob that is written to a temporary file and renamed into
// place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{f: f, path: path}, nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns all blobs below the root whose name starts with prefix.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(filepath.Base(name), ".") {
			return nil
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// DropCache evicts the files below prefix from the kernel page cache.
func (s *LocalStore) DropCache(ctx context.Context, prefix string) (CacheStats, error) {
	st, err := pagecache.DropDir(ctx, s.Path(prefix))
	return CacheStats{Files: st.Files, Bytes: st.Bytes, Missing: st.Missing}, err
}

type fileBlob struct {
	f    *os.File
	size int64
}

// ReadAt uses pread, which is safe for concurrent use.
func (b *fileBlob) ReadAt(p []byte, off int64) (int, error) { return b.f.ReadAt(p, off) }
func (b *fileBlob) Close() error                             { return b.f.Close() }
func (b *fileBlob) Size() int64                              { return b.size }

type mmapBlob struct {
	m *mmap.Mapping
}

func (b *mmapBlob) ReadAt(p []byte, off int64) (int, error) { return b.m.ReadAt(p, off) }
func (b *mmapBlob) Close() error                             { return b.m.Close() }
func (b *mmapBlob) Size() int64                              { return int64(b.m.Size()) }
func (b *mmapBlob) Bytes() ([]byte, error)                   { return b.m.Bytes(), nil }

type localWritableBlob struct {
	f    *os.File
	path string
	done atomic.Bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	if w.done.Load() {
		return 0, os.ErrClosed
	}
	return w.f.Write(p)
}

func (w *localWritableBlob) Close() error {
	if !w.done.CompareAndSwap(false, true) {
		return os.ErrClosed
	}
	tmp := w.f.Name()
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, w.path)
}

func (w *localWritableBlob) Abort() error {
	if !w.done.CompareAndSwap(false, true) {
		return nil
	}
	_ = w.f.Close()
	return os.Remove(w.f.Name())
}
