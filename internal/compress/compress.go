// Package compress provides block codecs for the columnar file format.
//
// Every codec is safe for concurrent use. Encode may report that a block is
// incompressible by returning ErrIncompressible; callers then store the block
// raw and record that in the block index.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrIncompressible is returned by Encode when the output would not be smaller
// than the input.
var ErrIncompressible = errors.New("compress: block is incompressible")

// ID identifies a codec in persisted block indexes.
type ID uint8

const (
	None ID = iota
	LZ4
	Zstd
	Snappy
)

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(id))
	}
}

// Codec compresses and decompresses whole blocks.
type Codec interface {
	ID() ID
	// Encode appends the compressed form of src to dst[:0].
	Encode(dst, src []byte) ([]byte, error)
	// Decode decompresses src into dst, which must have the exact decoded length.
	Decode(dst, src []byte) error
}

// ByID returns the codec for id.
func ByID(id ID) (Codec, error) {
	switch id {
	case None:
		return noneCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case Zstd:
		return zstdCodec{}, nil
	case Snappy:
		return snappyCodec{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %d", uint8(id))
	}
}

// ByName returns the codec with the given name.
func ByName(name string) (Codec, error) {
	for _, id := range []ID{None, LZ4, Zstd, Snappy} {
		if id.String() == name {
			return ByID(id)
		}
	}
	return nil, fmt.Errorf("compress: unknown codec %q", name)
}

type noneCodec struct{}

func (noneCodec) ID() ID { return None }

func (noneCodec) Encode(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}

func (noneCodec) Decode(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("compress: raw block has %d bytes, want %d", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

type lz4Codec struct{}

func (lz4Codec) ID() ID { return LZ4 }

func (lz4Codec) Encode(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	if cap(dst) < bound {
		dst = make([]byte, bound)
	}
	dst = dst[:bound]

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

func (lz4Codec) Decode(dst, src []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("compress: lz4 block decoded to %d bytes, want %d", n, len(dst))
	}
	return nil
}

var (
	zstdEncOnce sync.Once
	zstdEnc     *zstd.Encoder
	zstdDecOnce sync.Once
	zstdDec     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	zstdEncOnce.Do(func() {
		// Options are static, so NewWriter cannot fail here.
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	})
	return zstdEnc
}

func zstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDec
}

type zstdCodec struct{}

func (zstdCodec) ID() ID { return Zstd }

func (zstdCodec) Encode(dst, src []byte) ([]byte, error) {
	out := zstdEncoder().EncodeAll(src, dst[:0])
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

func (zstdCodec) Decode(dst, src []byte) error {
	out, err := zstdDecoder().DecodeAll(src, dst[:0])
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("compress: zstd block decoded to %d bytes, want %d", len(out), len(dst))
	}
	copy(dst, out)
	return nil
}

type snappyCodec struct{}

func (snappyCodec) ID() ID { return Snappy }

func (snappyCodec) Encode(dst, src []byte) ([]byte, error) {
	out := snappy.Encode(dst[:cap(dst)], src)
	if len(out) >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

func (snappyCodec) Decode(dst, src []byte) error {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("compress: snappy block decodes to %d bytes, want %d", n, len(dst))
	}
	_, err = snappy.Decode(dst, src)
	return err
}
