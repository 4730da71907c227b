package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/engine"
)

// ErrInjected is returned by takes selected for failure.
var ErrInjected = errors.New("testutil: injected failure")

// Option configures a Dataset.
type Option func(*Dataset)

// WithDelay makes every take sleep for d before answering.
func WithDelay(d time.Duration) Option {
	return func(ds *Dataset) { ds.delay = d }
}

// WithFailEvery fails every n-th take (1-based), counted across all callers.
func WithFailEvery(n int) Option {
	return func(ds *Dataset) { ds.failEvery = int64(n) }
}

// WithPanicEvery panics on every n-th take (1-based).
func WithPanicEvery(n int) Option {
	return func(ds *Dataset) { ds.panicEvery = int64(n) }
}

// WithAllocator sets the allocator used for returned records.
func WithAllocator(mem memory.Allocator) Option {
	return func(ds *Dataset) { ds.mem = mem }
}

// WithBlock makes takes wait until release is closed or ctx is done.
func WithBlock(release <-chan struct{}) Option {
	return func(ds *Dataset) { ds.block = release }
}

// Dataset is an in-memory dispatch.Dataset whose row i holds the value i in
// every dimension.
type Dataset struct {
	dim        int
	delay      time.Duration
	failEvery  int64
	panicEvery int64
	block      <-chan struct{}
	mem        memory.Allocator

	calls    atomic.Int64
	inFlight atomic.Int64
	maxIn    atomic.Int64

	mu   sync.Mutex
	seen [][]uint64
}

// NewDataset creates a Dataset with vectors of dim elements.
func NewDataset(dim int, opts ...Option) *Dataset {
	ds := &Dataset{dim: dim, mem: memory.DefaultAllocator}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Take returns one row per index.
func (ds *Dataset) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	n := ds.calls.Add(1)

	cur := ds.inFlight.Add(1)
	defer ds.inFlight.Add(-1)
	for {
		peak := ds.maxIn.Load()
		if cur <= peak || ds.maxIn.CompareAndSwap(peak, cur) {
			break
		}
	}

	ds.mu.Lock()
	ds.seen = append(ds.seen, slices.Clone(indices))
	ds.mu.Unlock()

	if ds.block != nil {
		select {
		case <-ds.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ds.delay > 0 {
		time.Sleep(ds.delay)
	}
	if ds.panicEvery > 0 && n%ds.panicEvery == 0 {
		panic(fmt.Sprintf("testutil: injected panic on take %d", n))
	}
	if ds.failEvery > 0 && n%ds.failEvery == 0 {
		return nil, ErrInjected
	}

	flat := make([]float32, len(indices)*ds.dim)
	for i, idx := range indices {
		for j := range ds.dim {
			flat[i*ds.dim+j] = float32(idx)
		}
	}
	return engine.NewRecord(ds.mem, ds.dim, flat), nil
}

// Calls returns the number of takes issued.
func (ds *Dataset) Calls() int64 { return ds.calls.Load() }

// MaxInFlight returns the peak number of concurrent takes.
func (ds *Dataset) MaxInFlight() int64 { return ds.maxIn.Load() }

// Seen returns the index lists of all takes in arrival order.
func (ds *Dataset) Seen() [][]uint64 {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return slices.Clone(ds.seen)
}

// Sequential returns n queries where query i is [i].
func Sequential(n int) [][]uint64 {
	queries := make([][]uint64, n)
	for i := range queries {
		queries[i] = []uint64{uint64(i)}
	}
	return queries
}
