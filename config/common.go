package config

import (
	"errors"
	"slices"
	"strings"

	"github.com/hupe1980/colbench/blobstore"
	"github.com/hupe1980/colbench/engine"
	"github.com/spf13/viper"
)

// Common holds settings shared by all commands.
type Common struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	ResultsFile string `mapstructure:"results_file"`
	MetricsFile string `mapstructure:"metrics_file"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	ReadMode        string `mapstructure:"read_mode"`
	BlockCacheBytes int64  `mapstructure:"block_cache_bytes"`

	S3Region       string `mapstructure:"s3_region"`
	S3Endpoint     string `mapstructure:"s3_endpoint"`
	MinIOAccessKey string `mapstructure:"minio_access_key"`
	MinIOSecretKey string `mapstructure:"minio_secret_key"`
	MinIOSecure    bool   `mapstructure:"minio_secure"`
}

// DefaultCommon returns the default shared settings.
func DefaultCommon() Common {
	return Common{
		LogLevel:        "info",
		LogFormat:       "text",
		ReadMode:        "pread",
		BlockCacheBytes: 256 << 20,
	}
}

func setCommonDefaults(v *viper.Viper) {
	d := DefaultCommon()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("results_file", d.ResultsFile)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("read_mode", d.ReadMode)
	v.SetDefault("block_cache_bytes", d.BlockCacheBytes)
	v.SetDefault("s3_region", d.S3Region)
	v.SetDefault("s3_endpoint", d.S3Endpoint)
	v.SetDefault("minio_access_key", d.MinIOAccessKey)
	v.SetDefault("minio_secret_key", d.MinIOSecretKey)
	v.SetDefault("minio_secure", d.MinIOSecure)
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate checks the shared settings.
func (c Common) Validate() error {
	var errs []error
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, invalid("log_level", "unknown level %q (want one of %v)", c.LogLevel, logLevels))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, invalid("log_format", "unknown format %q (want one of %v)", c.LogFormat, logFormats))
	}
	if _, err := blobstore.ParseReadMode(c.ReadMode); err != nil {
		errs = append(errs, &Error{Key: "read_mode", Err: err})
	}
	if c.BlockCacheBytes < 0 {
		errs = append(errs, invalid("block_cache_bytes", "must be >= 0, got %d", c.BlockCacheBytes))
	}
	return errors.Join(errs...)
}

// StoreOptions converts the storage settings. Call after Validate.
func (c Common) StoreOptions() engine.StoreOptions {
	mode, _ := blobstore.ParseReadMode(c.ReadMode)
	return engine.StoreOptions{
		ReadMode:        mode,
		BlockCacheBytes: c.BlockCacheBytes,
		S3Region:        c.S3Region,
		S3Endpoint:      c.S3Endpoint,
		MinIOAccessKey:  c.MinIOAccessKey,
		MinIOSecretKey:  c.MinIOSecretKey,
		MinIOSecure:     c.MinIOSecure,
	}
}
