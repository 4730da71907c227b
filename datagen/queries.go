package datagen

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// QueryConfig describes a take workload.
type QueryConfig struct {
	NumQueries   int
	RowsPerQuery int
	// MaxRow is the exclusive upper bound of generated indices.
	MaxRow uint64
	// Unique draws indices without replacement. Otherwise indices are drawn
	// independently and a query may contain duplicates.
	Unique bool
}

// Validate checks the configuration.
func (c QueryConfig) Validate() error {
	if c.NumQueries < 0 || c.RowsPerQuery < 0 {
		return fmt.Errorf("datagen: negative query size (%d queries of %d rows)", c.NumQueries, c.RowsPerQuery)
	}
	if c.MaxRow == 0 && c.RowsPerQuery > 0 {
		return fmt.Errorf("datagen: cannot draw rows from an empty dataset")
	}
	return nil
}

// Queries generates sorted row index lists.
// With Unique set, a query never holds more than MaxRow indices.
func Queries(rng *RNG, cfg QueryConfig) ([][]uint64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	queries := make([][]uint64, cfg.NumQueries)
	for i := range queries {
		if cfg.Unique {
			queries[i] = uniqueQuery(rng, cfg)
			continue
		}
		q := make([]uint64, cfg.RowsPerQuery)
		rng.FillIndices(q, cfg.MaxRow)
		slices.Sort(q)
		queries[i] = q
	}
	return queries, nil
}

func uniqueQuery(rng *RNG, cfg QueryConfig) []uint64 {
	want := min(uint64(cfg.RowsPerQuery), cfg.MaxRow) //nolint:gosec
	bm := roaring64.New()

	// Dense queries are cheaper to build by removing rows from the full set.
	if want > cfg.MaxRow/2 {
		bm.AddRange(0, cfg.MaxRow)
		for bm.GetCardinality() > want {
			bm.Remove(uint64(rng.Int63n(int64(cfg.MaxRow)))) //nolint:gosec
		}
		return bm.ToArray()
	}

	buf := make([]uint64, 64)
	for bm.GetCardinality() < want {
		n := min(uint64(len(buf)), want-bm.GetCardinality())
		rng.FillIndices(buf[:n], cfg.MaxRow)
		bm.AddMany(buf[:n])
	}
	return bm.ToArray()
}
