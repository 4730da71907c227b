// Package pagecache evicts files from the kernel page cache.
//
// Eviction uses posix_fadvise(POSIX_FADV_DONTNEED), which drops clean pages
// only. It is a hint: the kernel may keep pages that are mapped or dirty.
// On platforms without fadvise the functions succeed without doing anything.
package pagecache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Stats describes an eviction pass.
type Stats struct {
	// Files is the number of regular files visited.
	Files int
	// Bytes is the combined size of those files.
	Bytes int64
	// Missing is set when the root path did not exist.
	Missing bool
}

// DropFile evicts a single file and returns its size.
func DropFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := evict(f, fi.Size()); err != nil {
		return fi.Size(), &os.PathError{Op: "fadvise", Path: path, Err: err}
	}
	return fi.Size(), nil
}

// DropDir walks root and evicts every regular file below it.
//
// A missing root is not an error; Stats.Missing reports it. Failures on
// individual files are joined and returned after the walk completes.
func DropDir(ctx context.Context, root string) (Stats, error) {
	var stats Stats

	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			stats.Missing = true
			return stats, nil
		}
		return stats, err
	}

	var errs []error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		size, err := DropFile(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		stats.Files++
		stats.Bytes += size
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return stats, errors.Join(errs...)
}
