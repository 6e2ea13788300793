package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/progresa/pkg/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	addFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progresa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_dir: results
regression:
  standard_error: robust
artifacts:
  parquet: true
`), 0o644))

	// Only flags set on the command line override the file.
	flags := newFlags(t,
		"--"+FlagConfig, path,
		"--"+FlagSteps, "summary,did-check",
		"--"+FlagEqualVariance,
		"--"+FlagJSON+"=false",
	)
	got, err := loadConfig(flags, []string{"data.csv.gz"})
	require.NoError(t, err)

	want := config.Default()
	want.Input = "data.csv.gz"
	want.OutputDir = "results"
	want.Steps = []string{"summary", "did-check"}
	want.TTest.EqualVariance = true
	want.Regression.StandardError = "robust"
	want.Artifacts.Parquet = true
	want.Artifacts.JSON = false
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loadConfig (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	got, err := loadConfig(newFlags(t), nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), got)
}
