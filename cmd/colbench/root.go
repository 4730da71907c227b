package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/colbench/config"
)

var errUsage = errors.New("usage")

type globalFlags struct {
	configFile string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "colbench",
		Short:         "Benchmark takes and scans over columnar vector datasets",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Path to a configuration file (YAML, JSON or TOML)")
	pf.StringSliceVar(&g.envFiles, "env-file", nil, "Dotenv files to load (default .env)")

	root.AddCommand(newTakeCmd(g), newScanCmd(g), newEnginesCmd(g))
	return root
}

// commonFlags registers the settings shared by all benchmarks.
func commonFlags(fs *pflag.FlagSet) {
	d := config.DefaultCommon()
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "Log format: text, json")
	fs.String("results-file", d.ResultsFile, "Append JSON-lines results to this file")
	fs.String("metrics-file", d.MetricsFile, "Write Prometheus metrics in text format to this file on exit")
	fs.String("metrics-addr", d.MetricsAddr, "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.String("read-mode", d.ReadMode, "Local file access: pread, mmap")
	fs.Int64("block-cache-bytes", d.BlockCacheBytes, "In-process block cache budget for remote stores (0 disables)")
	fs.String("s3-region", d.S3Region, "AWS region for s3:// datasets")
	fs.String("s3-endpoint", d.S3Endpoint, "Custom S3 endpoint")
	fs.String("minio-access-key", d.MinIOAccessKey, "MinIO access key")
	fs.String("minio-secret-key", d.MinIOSecretKey, "MinIO secret key")
	fs.Bool("minio-secure", d.MinIOSecure, "Use TLS for minio:// datasets")
}

// viperFor resolves settings for cmd: defaults < config file < env < flags.
func (g *globalFlags) viperFor(cmd *cobra.Command) (*viper.Viper, error) {
	v, err := config.New(g.configFile, g.envFiles...)
	if err != nil {
		return nil, err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}
