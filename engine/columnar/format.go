package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/hupe1980/colbench/internal/compress"
	"github.com/hupe1980/colbench/internal/conv"
)

const (
	// FormatMagic identifies columnar vector files (ASCII: "COLV").
	FormatMagic = 0x434F4C56

	// FormatVersion is the current file format version.
	FormatVersion uint32 = 1

	// MagicSize is the size of the leading magic number.
	MagicSize = 4

	// FooterSize is the size of the trailing footer in bytes.
	FooterSize = 64

	// BlockEntrySize is the size of one block index entry in bytes.
	BlockEntrySize = 24

	// FlagCompressed indicates that at least one block is compressed.
	FlagCompressed uint32 = 1 << 0
)

var (
	// ErrInvalidMagic is returned when a file has an invalid magic number.
	ErrInvalidMagic = errors.New("columnar: invalid magic number")

	// ErrInvalidVersion is returned when a file has an unsupported version.
	ErrInvalidVersion = errors.New("columnar: unsupported format version")

	// ErrCorrupted is returned when a file fails checksum validation.
	ErrCorrupted = errors.New("columnar: file corrupted (checksum mismatch)")
)

// Footer is the 64-byte trailer of a columnar file.
//
// File layout:
//
//	magic | block 0 | block 1 | ... | block index | footer
//
// All multi-byte fields are little-endian.
type Footer struct {
	Magic         uint32
	Version       uint32
	Flags         uint32
	Dimension     uint32
	Count         uint64 // Total number of rows
	BlockRows     uint32 // Rows per block; the last block may be shorter
	BlockCount    uint32
	IndexOffset   uint64
	IndexChecksum uint32 // CRC32 of the block index
	Codec         compress.ID
	Checksum      uint32 // CRC32 of the footer (excluding this field)
}

// Validate checks that the footer is consistent.
func (f *Footer) Validate() error {
	if f.Magic != FormatMagic {
		return ErrInvalidMagic
	}
	if f.Version > FormatVersion {
		return ErrInvalidVersion
	}
	if f.Dimension == 0 || f.BlockRows == 0 {
		return fmt.Errorf("columnar: invalid footer (dim=%d, block rows=%d)", f.Dimension, f.BlockRows)
	}
	if _, err := conv.Uint64ToInt64(f.Count); err != nil {
		return fmt.Errorf("columnar: row count: %w", err)
	}
	if _, err := conv.Uint64ToInt64(f.IndexOffset); err != nil {
		return fmt.Errorf("columnar: index offset: %w", err)
	}
	want := (f.Count + uint64(f.BlockRows) - 1) / uint64(f.BlockRows)
	if uint64(f.BlockCount) != want {
		return fmt.Errorf("columnar: %d blocks for %d rows of block size %d", f.BlockCount, f.Count, f.BlockRows)
	}
	return nil
}

// RowBytes returns the encoded size of one row.
func (f *Footer) RowBytes() int {
	return int(f.Dimension) * 4
}

// IndexSize returns the size of the block index in bytes.
func (f *Footer) IndexSize() int64 {
	return int64(f.BlockCount) * BlockEntrySize
}

// MarshalBinary encodes the footer and computes its checksum.
func (f *Footer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], f.Version)
	binary.LittleEndian.PutUint32(buf[8:12], f.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], f.Dimension)
	binary.LittleEndian.PutUint64(buf[16:24], f.Count)
	binary.LittleEndian.PutUint32(buf[24:28], f.BlockRows)
	binary.LittleEndian.PutUint32(buf[28:32], f.BlockCount)
	binary.LittleEndian.PutUint64(buf[32:40], f.IndexOffset)
	binary.LittleEndian.PutUint32(buf[40:44], f.IndexChecksum)
	buf[44] = byte(f.Codec)

	// Checksum covers the first 56 bytes; the rest is reserved.
	f.Checksum = crc32.ChecksumIEEE(buf[:56])
	binary.LittleEndian.PutUint32(buf[56:60], f.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes and validates a footer.
func (f *Footer) UnmarshalBinary(buf []byte) error {
	if len(buf) != FooterSize {
		return fmt.Errorf("columnar: footer has %d bytes, want %d", len(buf), FooterSize)
	}
	f.Magic = binary.LittleEndian.Uint32(buf[0:4])
	f.Version = binary.LittleEndian.Uint32(buf[4:8])
	f.Flags = binary.LittleEndian.Uint32(buf[8:12])
	f.Dimension = binary.LittleEndian.Uint32(buf[12:16])
	f.Count = binary.LittleEndian.Uint64(buf[16:24])
	f.BlockRows = binary.LittleEndian.Uint32(buf[24:28])
	f.BlockCount = binary.LittleEndian.Uint32(buf[28:32])
	f.IndexOffset = binary.LittleEndian.Uint64(buf[32:40])
	f.IndexChecksum = binary.LittleEndian.Uint32(buf[40:44])
	f.Codec = compress.ID(buf[44])
	f.Checksum = binary.LittleEndian.Uint32(buf[56:60])

	if f.Checksum != crc32.ChecksumIEEE(buf[:56]) {
		return ErrCorrupted
	}
	return f.Validate()
}

// BlockEntry locates one block in the file.
type BlockEntry struct {
	Offset    uint64
	StoredLen uint32
	RawLen    uint32
	Checksum  uint32 // CRC32 of the stored bytes
	Codec     compress.ID
}

func (e BlockEntry) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, e.Offset)
	dst = binary.LittleEndian.AppendUint32(dst, e.StoredLen)
	dst = binary.LittleEndian.AppendUint32(dst, e.RawLen)
	dst = binary.LittleEndian.AppendUint32(dst, e.Checksum)
	return append(dst, byte(e.Codec), 0, 0, 0)
}

// encodeIndex serializes the block index.
func encodeIndex(entries []BlockEntry) []byte {
	buf := make([]byte, 0, len(entries)*BlockEntrySize)
	for _, e := range entries {
		buf = e.appendTo(buf)
	}
	return buf
}

// decodeIndex parses a block index written by encodeIndex.
func decodeIndex(buf []byte, count int) ([]BlockEntry, error) {
	if len(buf) != count*BlockEntrySize {
		return nil, fmt.Errorf("columnar: index has %d bytes, want %d", len(buf), count*BlockEntrySize)
	}
	entries := make([]BlockEntry, count)
	for i := range entries {
		b := buf[i*BlockEntrySize:]
		entries[i] = BlockEntry{
			Offset:    binary.LittleEndian.Uint64(b[0:8]),
			StoredLen: binary.LittleEndian.Uint32(b[8:12]),
			RawLen:    binary.LittleEndian.Uint32(b[12:16]),
			Checksum:  binary.LittleEndian.Uint32(b[16:20]),
			Codec:     compress.ID(b[20]),
		}
	}
	return entries, nil
}
