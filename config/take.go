package config

import (
	"errors"
	"strings"

	"github.com/hupe1980/colbench/dispatch"
	"github.com/spf13/viper"
)

// Take configures the take benchmark.
type Take struct {
	Common `mapstructure:",squash"`

	Engine            string   `mapstructure:"engine"`
	RowsPerDataset    int64    `mapstructure:"rows_per_dataset"`
	WriteBatchSize    int      `mapstructure:"write_batch_size"`
	VectorDim         int      `mapstructure:"vector_dim"`
	NumQueries        int      `mapstructure:"num_queries"`
	RowsPerQuery      int      `mapstructure:"rows_per_query"`
	NumRuntimes       int      `mapstructure:"num_runtimes"`
	ConcurrentQueries int      `mapstructure:"concurrent_queries"`
	DatasetURIs       []string `mapstructure:"dataset_uri"`
	SkipWarmup        bool     `mapstructure:"skip_warmup"`
	WarmupPasses      int      `mapstructure:"warmup_passes"`
	SkipCacheDrop     bool     `mapstructure:"skip_cache_drop"`
	FailurePolicy     string   `mapstructure:"failure_policy"`
	UniqueIndices     bool     `mapstructure:"unique_indices"`
	Seed              int64    `mapstructure:"seed"`
	TargetQPS         float64  `mapstructure:"target_qps"`
}

// DefaultTake returns the default take settings.
func DefaultTake() Take {
	return Take{
		Common:            DefaultCommon(),
		Engine:            "columnar",
		RowsPerDataset:    1_000_000,
		WriteBatchSize:    100_000,
		VectorDim:         768,
		NumQueries:        2_000,
		RowsPerQuery:      500,
		NumRuntimes:       16,
		ConcurrentQueries: 4,
		DatasetURIs:       []string{"file:///tmp/dataset"},
		WarmupPasses:      1,
		FailurePolicy:     "zero",
		Seed:              42,
	}
}

// SetTakeDefaults registers the take defaults on v.
func SetTakeDefaults(v *viper.Viper) {
	setCommonDefaults(v)
	d := DefaultTake()
	v.SetDefault("engine", d.Engine)
	v.SetDefault("rows_per_dataset", d.RowsPerDataset)
	v.SetDefault("write_batch_size", d.WriteBatchSize)
	v.SetDefault("vector_dim", d.VectorDim)
	v.SetDefault("num_queries", d.NumQueries)
	v.SetDefault("rows_per_query", d.RowsPerQuery)
	v.SetDefault("num_runtimes", d.NumRuntimes)
	v.SetDefault("concurrent_queries", d.ConcurrentQueries)
	v.SetDefault("dataset_uri", d.DatasetURIs)
	v.SetDefault("skip_warmup", d.SkipWarmup)
	v.SetDefault("warmup_passes", d.WarmupPasses)
	v.SetDefault("skip_cache_drop", d.SkipCacheDrop)
	v.SetDefault("failure_policy", d.FailurePolicy)
	v.SetDefault("unique_indices", d.UniqueIndices)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("target_qps", d.TargetQPS)
}

// LoadTake resolves and validates the take settings from v.
func LoadTake(v *viper.Viper) (Take, error) {
	SetTakeDefaults(v)

	var c Take
	if err := unmarshal(v, &c); err != nil {
		return Take{}, err
	}
	c.DatasetURIs = splitList(c.DatasetURIs)
	if err := c.Validate(); err != nil {
		return Take{}, err
	}
	return c, nil
}

// Validate checks the take settings.
func (c Take) Validate() error {
	errs := []error{c.Common.Validate()}

	if strings.TrimSpace(c.Engine) == "" {
		errs = append(errs, invalid("engine", "must not be empty"))
	}
	if c.RowsPerDataset < 1 {
		errs = append(errs, invalid("rows_per_dataset", "must be >= 1, got %d", c.RowsPerDataset))
	}
	if c.WriteBatchSize < 1 {
		errs = append(errs, invalid("write_batch_size", "must be >= 1, got %d", c.WriteBatchSize))
	}
	if c.VectorDim < 1 {
		errs = append(errs, invalid("vector_dim", "must be >= 1, got %d", c.VectorDim))
	}
	if c.NumQueries < 1 {
		errs = append(errs, invalid("num_queries", "must be >= 1, got %d", c.NumQueries))
	}
	if c.RowsPerQuery < 1 {
		errs = append(errs, invalid("rows_per_query", "must be >= 1, got %d", c.RowsPerQuery))
	}
	if c.UniqueIndices && int64(c.RowsPerQuery) > c.RowsPerDataset {
		errs = append(errs, invalid("rows_per_query", "unique indices need rows_per_query <= rows_per_dataset (%d > %d)",
			c.RowsPerQuery, c.RowsPerDataset))
	}
	if c.NumRuntimes < 1 {
		errs = append(errs, invalid("num_runtimes", "must be >= 1, got %d", c.NumRuntimes))
	}
	if c.ConcurrentQueries < 1 {
		errs = append(errs, invalid("concurrent_queries", "must be >= 1, got %d", c.ConcurrentQueries))
	}
	if len(c.DatasetURIs) == 0 {
		errs = append(errs, invalid("dataset_uri", "at least one dataset URI is required"))
	}
	if c.WarmupPasses < 0 {
		errs = append(errs, invalid("warmup_passes", "must be >= 0, got %d", c.WarmupPasses))
	}
	if _, err := dispatch.ParseFailurePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, &Error{Key: "failure_policy", Err: err})
	}
	if c.TargetQPS < 0 {
		errs = append(errs, invalid("target_qps", "must be >= 0, got %g", c.TargetQPS))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed failure policy. Call after Validate.
func (c Take) Policy() dispatch.FailurePolicy {
	p, _ := dispatch.ParseFailurePolicy(c.FailurePolicy)
	return p
}

// splitList flattens comma separated entries and drops empty ones.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for part := range strings.SplitSeq(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
