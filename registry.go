package colbench

import (
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/engine/arrowipc"
	"github.com/hupe1980/colbench/engine/columnar"
	"github.com/hupe1980/colbench/engine/parquet"
	"github.com/hupe1980/colbench/engine/sqlite"
	"github.com/hupe1980/colbench/internal/compress"
)

// DefaultEngine is the engine used when none is configured.
const DefaultEngine = "columnar"

// Engines returns every built-in engine bound to stores.
func Engines(stores *engine.Stores) []engine.Engine {
	var engines []engine.Engine
	for _, id := range []compress.ID{compress.None, compress.LZ4, compress.Zstd, compress.Snappy} {
		c, err := compress.ByID(id)
		if err != nil {
			panic(err)
		}
		engines = append(engines, columnar.New(stores, columnar.WithCodec(c)))
	}
	return append(engines,
		parquet.New(stores),
		parquet.New(stores, parquet.WithAsync()),
		arrowipc.New(stores),
		sqlite.New(stores),
	)
}

// NewRegistry returns a registry of all built-in engines.
func NewRegistry(stores *engine.Stores) (*engine.Registry, error) {
	return engine.NewRegistry(Engines(stores)...)
}
