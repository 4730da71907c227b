package selection

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FromBitmap builds a selection from a set of row indices.
//
// The bitmap iterates in ascending order, so runs are emitted directly
// without the ordering checks FromIndices needs.
func FromBitmap(bm *roaring64.Bitmap, totalRows uint64) (Selection, error) {
	if bm == nil || bm.IsEmpty() {
		return FromIndices(nil, totalRows)
	}
	if maxIdx := bm.Maximum(); maxIdx >= totalRows {
		return nil, fmt.Errorf("%w: index %d, total rows %d", ErrOutOfRange, maxIdx, totalRows)
	}

	sel := make(Selection, 0, 2*int(bm.GetCardinality())+1)

	var pos uint64
	it := bm.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if idx > pos {
			sel = sel.push(Skip, idx-pos)
		}
		sel = sel.push(Select, 1)
		pos = idx + 1
	}
	if pos < totalRows {
		sel = sel.push(Skip, totalRows-pos)
	}
	return sel, nil
}

// Bitmap returns the selected rows as a bitmap.
func (s Selection) Bitmap() *roaring64.Bitmap {
	bm := roaring64.New()
	for _, r := range s.Ranges() {
		bm.AddRange(r.Start, r.End)
	}
	return bm
}
