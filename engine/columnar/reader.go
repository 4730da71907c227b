package columnar

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/internal/compress"
	"github.com/hupe1980/colbench/internal/conv"
	"github.com/hupe1980/colbench/selection"
)

// Reader serves takes and scans from a columnar file.
// It is safe for concurrent use.
type Reader struct {
	blob   blobstore.Blob
	mapped []byte // non-nil for memory-mapped local files
	footer Footer
	index  []BlockEntry
	mem    memory.Allocator
}

// ReadFooter reads and validates the footer and leading magic of blob.
func ReadFooter(blob blobstore.Blob) (Footer, error) {
	var f Footer
	size := blob.Size()
	if size < MagicSize+FooterSize {
		return f, fmt.Errorf("columnar: file of %d bytes is too small", size)
	}

	magic := make([]byte, MagicSize)
	if _, err := blob.ReadAt(magic, 0); err != nil {
		return f, err
	}
	if binary.LittleEndian.Uint32(magic) != FormatMagic {
		return f, ErrInvalidMagic
	}

	buf := make([]byte, FooterSize)
	if _, err := blob.ReadAt(buf, size-FooterSize); err != nil {
		return f, err
	}
	if err := f.UnmarshalBinary(buf); err != nil {
		return f, err
	}
	if f.IndexOffset+uint64(f.IndexSize())+FooterSize != uint64(size) { //nolint:gosec
		return f, fmt.Errorf("columnar: index at %d does not end at footer (size %d)", f.IndexOffset, size)
	}
	return f, nil
}

// NewReader loads the footer and block index of blob.
// The reader takes ownership of blob.
func NewReader(blob blobstore.Blob) (*Reader, error) {
	footer, err := ReadFooter(blob)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, footer.IndexSize())
	if len(buf) > 0 {
		if _, err := blob.ReadAt(buf, int64(footer.IndexOffset)); err != nil { //nolint:gosec
			return nil, err
		}
	}
	if crc32.ChecksumIEEE(buf) != footer.IndexChecksum {
		return nil, ErrCorrupted
	}
	index, err := decodeIndex(buf, int(footer.BlockCount))
	if err != nil {
		return nil, err
	}

	r := &Reader{
		blob:   blob,
		footer: footer,
		index:  index,
		mem:    memory.DefaultAllocator,
	}
	if m, ok := blob.(blobstore.Mappable); ok {
		if b, err := m.Bytes(); err == nil {
			r.mapped = b
		}
	}
	return r, nil
}

// Footer returns the file footer.
func (r *Reader) Footer() Footer { return r.footer }

// Dim returns the vector dimension.
func (r *Reader) Dim() int { return int(r.footer.Dimension) }

// NumRows returns the number of rows in the file.
func (r *Reader) NumRows() int64 { return int64(r.footer.Count) } //nolint:gosec

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.blob.Size() }

// Close releases the underlying blob.
func (r *Reader) Close() error { return r.blob.Close() }

// read returns n bytes at off, without copying for mapped files.
func (r *Reader) read(off uint64, n int) ([]byte, error) {
	if r.mapped != nil {
		end := off + uint64(n) //nolint:gosec
		if end > uint64(len(r.mapped)) {
			return nil, io.ErrUnexpectedEOF
		}
		return r.mapped[off:end], nil
	}
	buf := make([]byte, n)
	if _, err := r.blob.ReadAt(buf, int64(off)); err != nil { //nolint:gosec
		return nil, err
	}
	return buf, nil
}

// block returns the decoded bytes of block i.
func (r *Reader) block(i int, dst []byte) ([]byte, error) {
	e := r.index[i]
	stored, err := r.read(e.Offset, int(e.StoredLen))
	if err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(stored) != e.Checksum {
		return nil, fmt.Errorf("%w: block %d", ErrCorrupted, i)
	}
	if e.Codec == compress.None {
		return stored, nil
	}

	codec, err := compress.ByID(e.Codec)
	if err != nil {
		return nil, err
	}
	if cap(dst) < int(e.RawLen) {
		dst = make([]byte, e.RawLen)
	}
	dst = dst[:e.RawLen]
	if err := codec.Decode(dst, stored); err != nil {
		return nil, fmt.Errorf("columnar: block %d: %w", i, err)
	}
	return dst, nil
}

// Take returns the rows selected by indices, in ascending order.
func (r *Reader) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	sel, err := selection.FromIndices(indices, r.footer.Count)
	if err != nil {
		return nil, err
	}

	dim := r.Dim()
	rowBytes := r.footer.RowBytes()
	blockRows := uint64(r.footer.BlockRows)
	out := make([]float32, 0, int(sel.Selected())*dim) //nolint:gosec

	var (
		cached  = -1
		decoded []byte
		scratch []byte
	)
	for _, rg := range sel.Ranges() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for row := rg.Start; row < rg.End; {
			b := int(row / blockRows) //nolint:gosec
			blockStart := uint64(b) * blockRows
			end := min(rg.End, blockStart+blockRows)
			lo := int(row-blockStart) * rowBytes //nolint:gosec
			hi := int(end-blockStart) * rowBytes //nolint:gosec

			var raw []byte
			if r.index[b].Codec == compress.None {
				// Uncompressed blocks are addressed directly.
				raw, err = r.read(r.index[b].Offset+uint64(lo), hi-lo) //nolint:gosec
				if err != nil {
					return nil, err
				}
			} else {
				if cached != b {
					decoded, err = r.block(b, scratch)
					if err != nil {
						return nil, err
					}
					scratch = decoded
					cached = b
				}
				raw = decoded[lo:hi]
			}

			if out, err = conv.AppendDecodedFloat32s(out, raw); err != nil {
				return nil, err
			}
			row = end
		}
	}
	return engine.NewRecord(r.mem, dim, out), nil
}

// Scan decodes every block and returns the number of rows read.
func (r *Reader) Scan(ctx context.Context) (int64, error) {
	var (
		rows    int64
		scratch []byte
		values  []float32
	)
	for i := range r.index {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		raw, err := r.block(i, scratch)
		if err != nil {
			return rows, err
		}
		if r.index[i].Codec != compress.None {
			scratch = raw
		}

		n := len(raw) / 4
		if cap(values) < n {
			values = make([]float32, n)
		}
		if err := conv.DecodeFloat32s(values[:n], raw); err != nil {
			return rows, err
		}
		rows += int64(n / r.Dim())
	}
	return rows, nil
}
