package datagen

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// DeriveSeed mixes base with parts into an independent seed.
// It is stable across runs and platforms, so the dataset at a given URI is
// always generated from the same stream.
func DeriveSeed(base int64, parts ...string) int64 {
	h := murmur3.New64WithSeed(uint32(base) ^ uint32(base>>32)) //nolint:gosec
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(base)) //nolint:gosec
	_, _ = h.Write(buf[:])
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return int64(h.Sum64() >> 1) //nolint:gosec
}
