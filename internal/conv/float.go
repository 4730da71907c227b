package conv

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AppendFloat32s appends the little-endian encoding of vals to dst.
func AppendFloat32s(dst []byte, vals []float32) []byte {
	for _, v := range vals {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeFloat32s decodes little-endian float32 values from src into dst.
// len(src) must be exactly 4*len(dst).
func DecodeFloat32s(dst []float32, src []byte) error {
	if len(src) != 4*len(dst) {
		return fmt.Errorf("conv: %d bytes cannot hold %d float32 values", len(src), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return nil
}

// AppendDecodedFloat32s decodes src and appends the values to dst.
func AppendDecodedFloat32s(dst []float32, src []byte) ([]float32, error) {
	if len(src)%4 != 0 {
		return dst, fmt.Errorf("conv: %d bytes is not a multiple of 4", len(src))
	}
	n := len(dst)
	dst = append(dst, make([]float32, len(src)/4)...)
	return dst, DecodeFloat32s(dst[n:], src)
}
