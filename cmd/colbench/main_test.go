package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/colbench"
	"github.com/hupe1980/colbench/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnginesCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"engines"})
	require.NoError(t, cmd.Execute())

	names := strings.Fields(out.String())
	assert.Contains(t, names, "columnar-zstd")
	assert.Contains(t, names, "parquet-async")
	assert.Len(t, names, 8)
}

func TestTakeCmd(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "metrics.prom")
	results := filepath.Join(dir, "results.jsonl")

	code := run(context.Background(), []string{
		"take",
		"--env-file", filepath.Join(dir, "none.env"),
		"--engine", "columnar-lz4",
		"--rows-per-dataset", "200",
		"--vector-dim", "4",
		"--num-queries", "10",
		"--rows-per-query", "3",
		"--num-runtimes", "2",
		"--concurrent-queries", "2",
		"--dataset-uri", filepath.Join(dir, "ds"),
		"--log-level", "error",
		"--metrics-file", metricsFile,
		"--results-file", results,
	})
	require.Equal(t, exitOK, code)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `engine="columnar-lz4"`)

	_, err = os.Stat(results)
	require.NoError(t, err)
}

func TestTakeCmd_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	none := filepath.Join(dir, "none.env")

	assert.Equal(t, exitConfig, run(context.Background(), []string{"take", "--env-file", none, "--engine", "nope",
		"--dataset-uri", dir, "--log-level", "error"}))
	assert.Equal(t, exitConfig, run(context.Background(), []string{"take", "--env-file", none, "--num-queries", "0"}))
	assert.Equal(t, exitConfig, run(context.Background(), []string{"take", "--no-such-flag"}))
	assert.Equal(t, exitConfig, run(context.Background(), []string{"take", "--config", filepath.Join(dir, "missing.yaml")}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitConfig, exitCode(colbench.NewConfigError(errors.New("x"))))
	assert.Equal(t, exitConfig, exitCode(&config.Error{Key: "rows", Err: errors.New("x")}))
	assert.Equal(t, exitFailed, exitCode(&colbench.RowCountError{Engine: "arrow", Stage: "timed"}))
}
