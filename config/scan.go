package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Scan configures the scan benchmark.
type Scan struct {
	Common `mapstructure:",squash"`

	// Input is the file to convert. Empty generates Rows x VectorDim vectors.
	Input            string `mapstructure:"input"`
	Engines          string `mapstructure:"engines"`
	OutputDir        string `mapstructure:"output_dir"`
	Iterations       int    `mapstructure:"iterations"`
	WarmupIterations int    `mapstructure:"warmup_iterations"`
	SkipWarmup       bool   `mapstructure:"skip_warmup"`
	SkipCacheDrop    bool   `mapstructure:"skip_cache_drop"`
	Rows             int64  `mapstructure:"rows"`
	VectorDim        int    `mapstructure:"vector_dim"`
	WriteBatchSize   int    `mapstructure:"write_batch_size"`
	Seed             int64  `mapstructure:"seed"`
}

// DefaultScan returns the default scan settings.
func DefaultScan() Scan {
	return Scan{
		Common:           DefaultCommon(),
		Engines:          "all",
		OutputDir:        "/tmp/scan-benchmark",
		Iterations:       10,
		WarmupIterations: 2,
		Rows:             100_000,
		VectorDim:        768,
		WriteBatchSize:   100_000,
		Seed:             42,
	}
}

// SetScanDefaults registers the scan defaults on v.
func SetScanDefaults(v *viper.Viper) {
	setCommonDefaults(v)
	d := DefaultScan()
	v.SetDefault("input", d.Input)
	v.SetDefault("engines", d.Engines)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("iterations", d.Iterations)
	v.SetDefault("warmup_iterations", d.WarmupIterations)
	v.SetDefault("skip_warmup", d.SkipWarmup)
	v.SetDefault("skip_cache_drop", d.SkipCacheDrop)
	v.SetDefault("rows", d.Rows)
	v.SetDefault("vector_dim", d.VectorDim)
	v.SetDefault("write_batch_size", d.WriteBatchSize)
	v.SetDefault("seed", d.Seed)
}

// LoadScan resolves and validates the scan settings from v.
func LoadScan(v *viper.Viper) (Scan, error) {
	SetScanDefaults(v)

	var c Scan
	if err := unmarshal(v, &c); err != nil {
		return Scan{}, err
	}
	if err := c.Validate(); err != nil {
		return Scan{}, err
	}
	return c, nil
}

// Validate checks the scan settings. A set Input must exist.
func (c Scan) Validate() error {
	errs := []error{c.Common.Validate()}

	if c.Input != "" {
		if fi, err := os.Stat(c.Input); err != nil {
			errs = append(errs, &Error{Key: "input", Err: err})
		} else if fi.IsDir() {
			errs = append(errs, invalid("input", "%s is a directory", c.Input))
		}
	} else {
		if c.Rows < 1 {
			errs = append(errs, invalid("rows", "must be >= 1 when no input is given, got %d", c.Rows))
		}
		if c.VectorDim < 1 {
			errs = append(errs, invalid("vector_dim", "must be >= 1, got %d", c.VectorDim))
		}
	}
	if strings.TrimSpace(c.Engines) == "" {
		errs = append(errs, invalid("engines", "must not be empty"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, invalid("output_dir", "must not be empty"))
	}
	if c.Iterations < 1 {
		errs = append(errs, invalid("iterations", "must be >= 1, got %d", c.Iterations))
	}
	if c.WarmupIterations < 0 {
		errs = append(errs, invalid("warmup_iterations", "must be >= 0, got %d", c.WarmupIterations))
	}
	if c.WriteBatchSize < 1 {
		errs = append(errs, invalid("write_batch_size", "must be >= 1, got %d", c.WriteBatchSize))
	}
	return errors.Join(errs...)
}
