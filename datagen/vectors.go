package datagen

import (
	"fmt"
	"io"
)

// Config describes a synthetic vector dataset.
type Config struct {
	Rows      int64
	BatchSize int
	Dim       int
	Seed      int64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rows < 0 {
		return fmt.Errorf("datagen: negative row count %d", c.Rows)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("datagen: batch size must be positive, got %d", c.BatchSize)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("datagen: dimension must be positive, got %d", c.Dim)
	}
	return nil
}

// Gaussian yields Config.Rows standard normal vectors in batches.
// It implements engine.BatchSource and is not safe for concurrent use.
type Gaussian struct {
	cfg     Config
	rng     *RNG
	emitted int64
	buf     []float32
}

// NewGaussian creates a deterministic source. Invalid configurations yield
// an error from the first Next call.
func NewGaussian(cfg Config) *Gaussian {
	return &Gaussian{cfg: cfg, rng: NewRNG(cfg.Seed)}
}

// Dim returns the vector dimension.
func (g *Gaussian) Dim() int { return g.cfg.Dim }

// NumRows returns the total number of rows.
func (g *Gaussian) NumRows() int64 { return g.cfg.Rows }

// Next returns the next batch. The slice is reused by the following call.
func (g *Gaussian) Next() ([]float32, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}
	remaining := g.cfg.Rows - g.emitted
	if remaining <= 0 {
		return nil, io.EOF
	}

	rows := int(min(remaining, int64(g.cfg.BatchSize)))
	n := rows * g.cfg.Dim
	if cap(g.buf) < n {
		g.buf = make([]float32, n)
	}
	batch := g.buf[:n]
	g.rng.FillGaussian(batch)
	g.emitted += int64(rows)
	return batch, nil
}

// Reset rewinds the source to its first batch.
func (g *Gaussian) Reset() {
	g.rng.Reset()
	g.emitted = 0
}
