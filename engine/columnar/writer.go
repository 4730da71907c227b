package columnar

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/colbench/internal/compress"
	"github.com/hupe1980/colbench/internal/conv"
)

// Writer streams vectors into a columnar file.
type Writer struct {
	w         *bufio.Writer
	codec     compress.Codec
	dim       int
	blockRows int

	pending []byte // encoded rows of the current block
	scratch []byte // compression output
	offset  uint64
	count   uint64
	index   []BlockEntry
	flags   uint32
	closed  bool
}

// NewWriter writes the leading magic number and returns a Writer.
func NewWriter(w io.Writer, dim, blockRows int, codec compress.Codec) (*Writer, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("columnar: invalid dimension %d", dim)
	}
	if blockRows <= 0 {
		return nil, fmt.Errorf("columnar: invalid block rows %d", blockRows)
	}
	// Block lengths are stored as uint32.
	if _, err := conv.IntToUint32(blockRows * dim * 4); err != nil {
		return nil, fmt.Errorf("columnar: block of %d rows too large: %w", blockRows, err)
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	magic := binary.LittleEndian.AppendUint32(nil, FormatMagic)
	if _, err := bw.Write(magic); err != nil {
		return nil, err
	}

	return &Writer{
		w:         bw,
		codec:     codec,
		dim:       dim,
		blockRows: blockRows,
		pending:   make([]byte, 0, blockRows*dim*4),
		offset:    MagicSize,
	}, nil
}

// Write appends flat row-major vectors.
func (w *Writer) Write(vectors []float32) error {
	if w.closed {
		return errors.New("columnar: writer closed")
	}
	if len(vectors)%w.dim != 0 {
		return fmt.Errorf("columnar: %d values is not a multiple of dimension %d", len(vectors), w.dim)
	}

	blockBytes := w.blockRows * w.dim * 4
	for len(vectors) > 0 {
		room := (blockBytes - len(w.pending)) / 4
		n := min(room, len(vectors))
		w.pending = conv.AppendFloat32s(w.pending, vectors[:n])
		vectors = vectors[n:]

		if len(w.pending) == blockBytes {
			if err := w.flushBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flushBlock() error {
	if len(w.pending) == 0 {
		return nil
	}

	entry := BlockEntry{
		Offset: w.offset,
		RawLen: uint32(len(w.pending)), //nolint:gosec
		Codec:  w.codec.ID(),
	}

	stored := w.pending
	if w.codec.ID() != compress.None {
		out, err := w.codec.Encode(w.scratch, w.pending)
		switch {
		case errors.Is(err, compress.ErrIncompressible):
			entry.Codec = compress.None
		case err != nil:
			return err
		default:
			w.scratch = out
			stored = out
			w.flags |= FlagCompressed
		}
	}

	entry.StoredLen = uint32(len(stored)) //nolint:gosec
	entry.Checksum = crc32.ChecksumIEEE(stored)
	if _, err := w.w.Write(stored); err != nil {
		return err
	}

	w.index = append(w.index, entry)
	w.offset += uint64(len(stored))
	w.count += uint64(len(w.pending) / (w.dim * 4))
	w.pending = w.pending[:0]
	return nil
}

// Close flushes the last block and writes the index and footer.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushBlock(); err != nil {
		return err
	}

	index := encodeIndex(w.index)
	if _, err := w.w.Write(index); err != nil {
		return err
	}

	footer := Footer{
		Magic:         FormatMagic,
		Version:       FormatVersion,
		Flags:         w.flags,
		Dimension:     uint32(w.dim),       //nolint:gosec
		BlockRows:     uint32(w.blockRows), //nolint:gosec
		BlockCount:    uint32(len(w.index)), //nolint:gosec
		Count:         w.count,
		IndexOffset:   w.offset,
		IndexChecksum: crc32.ChecksumIEEE(index),
		Codec:         w.codec.ID(),
	}
	buf, err := footer.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	return w.w.Flush()
}

// Count returns the number of rows written so far.
func (w *Writer) Count() uint64 {
	return w.count + uint64(len(w.pending)/(w.dim*4))
}
