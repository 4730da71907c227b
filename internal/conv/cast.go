package conv

import (
	"fmt"
	"math"
)

// IntToUint32 converts v, failing when it does not fit.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// Uint64ToInt64 converts v, failing above math.MaxInt64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("conv: %d out of int64 range", v)
	}
	return int64(v), nil
}
