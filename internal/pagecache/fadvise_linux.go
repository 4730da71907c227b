//go:build linux

package pagecache

import (
	"os"

	"golang.org/x/sys/unix"
)

// Supported reports whether eviction is implemented on this platform.
const Supported = true

func evict(f *os.File, size int64) error {
	return unix.Fadvise(int(f.Fd()), 0, size, unix.FADV_DONTNEED)
}
