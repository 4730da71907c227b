package compress

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecsRoundTrip(t *testing.T) {
	// Repetitive payload so every codec actually compresses.
	src := bytes.Repeat([]byte("colbench-vector-block-"), 512)

	for _, id := range []ID{None, LZ4, Zstd, Snappy} {
		t.Run(id.String(), func(t *testing.T) {
			c, err := ByID(id)
			require.NoError(t, err)
			require.Equal(t, id, c.ID())

			enc, err := c.Encode(nil, src)
			require.NoError(t, err)
			if id != None {
				require.Less(t, len(enc), len(src))
			}

			dst := make([]byte, len(src))
			require.NoError(t, c.Decode(dst, enc))
			require.Equal(t, src, dst)
		})
	}
}

func TestIncompressibleBlock(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(rng.UintN(256))
	}

	for _, id := range []ID{LZ4, Zstd, Snappy} {
		c, err := ByID(id)
		require.NoError(t, err)

		_, err = c.Encode(nil, src)
		require.ErrorIs(t, err, ErrIncompressible, id.String())
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	c, err := ByID(None)
	require.NoError(t, err)
	require.Error(t, c.Decode(make([]byte, 3), []byte{1, 2}))

	s, err := ByName("snappy")
	require.NoError(t, err)
	enc, err := s.Encode(nil, bytes.Repeat([]byte{7}, 100))
	require.NoError(t, err)
	require.Error(t, s.Decode(make([]byte, 99), enc))
}

func TestByName(t *testing.T) {
	c, err := ByName("zstd")
	require.NoError(t, err)
	require.Equal(t, Zstd, c.ID())

	_, err = ByName("brotli")
	require.Error(t, err)

	_, err = ByID(ID(42))
	require.Error(t, err)
}
