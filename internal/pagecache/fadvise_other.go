//go:build !linux

package pagecache

import "os"

// Supported reports whether eviction is implemented on this platform.
const Supported = false

func evict(*os.File, int64) error { return nil }
