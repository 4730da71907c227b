//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	got, err := IntToUint32(123)
	assert.NoError(t, err)
	assert.Equal(t, uint32(123), got)

	_, err = IntToUint32(-1)
	assert.Error(t, err)

	if math.MaxInt > math.MaxUint32 {
		_, err = IntToUint32(math.MaxUint32 + 1)
		assert.Error(t, err)
	}
}

func TestUint64ToInt64(t *testing.T) {
	got, err := Uint64ToInt64(42)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = Uint64ToInt64(math.MaxInt64 + 1)
	assert.Error(t, err)
}

func TestFloat32Encoding(t *testing.T) {
	vals := []float32{0, 1.5, -2.25, float32(math.Inf(1)), math.SmallestNonzeroFloat32}

	buf := AppendFloat32s(nil, vals)
	require.Len(t, buf, 4*len(vals))

	out := make([]float32, len(vals))
	require.NoError(t, DecodeFloat32s(out, buf))
	assert.Equal(t, vals, out)

	appended, err := AppendDecodedFloat32s([]float32{9}, buf)
	require.NoError(t, err)
	assert.Equal(t, append([]float32{9}, vals...), appended)

	assert.Error(t, DecodeFloat32s(out, buf[:3]))
	_, err = AppendDecodedFloat32s(nil, buf[:5])
	assert.Error(t, err)
}
