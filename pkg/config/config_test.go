package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	opts, err := cfg.TTestOptions()
	require.NoError(t, err)
	require.Equal(t, stats.TTestOptions{EqualVariance: false, Missing: stats.Omit}, opts)

	se, err := cfg.SEKind()
	require.NoError(t, err)
	require.Equal(t, regress.Classical, se)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progresa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: data/progresa_sample.csv
steps: [summary, did-check]
ttest:
  equal_variance: true
  missing_policy: error
regression:
  standard_error: robust
recoding:
  base_year: 1997
  post_year: 1998
artifacts:
  figures: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.Input = "data/progresa_sample.csv"
	want.Steps = []string{"summary", "did-check"}
	want.TTest = TTestConfig{EqualVariance: true, MissingPolicy: "error"}
	want.Regression.StandardError = "robust"
	want.Recoding = dataset.Periods{Base: 1997, Post: 1998}
	want.Artifacts.Figures = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load (-want +got):\n%s", diff)
	}
	require.NoError(t, cfg.Validate("summary", "did-check"))

	opts, err := cfg.TTestOptions()
	require.NoError(t, err)
	require.Equal(t, stats.TTestOptions{EqualVariance: true, Missing: stats.Error}, opts)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrInvalid)

	path := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ttests:\n  equal_variance: true\n"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Decode(strings.NewReader(""), &cfg))
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{name: "missing policy", modify: func(c *Config) { c.TTest.MissingPolicy = "impute" }, want: "ttest.missing_policy"},
		{name: "standard error", modify: func(c *Config) { c.Regression.StandardError = "hc3" }, want: "regression.standard_error"},
		{name: "periods", modify: func(c *Config) { c.Recoding.Post = c.Recoding.Base }, want: "recoding"},
		{name: "step", modify: func(c *Config) { c.Steps = []string{"summary", "sumary"} }, want: `unknown step "sumary"`},
		{name: "input", modify: func(c *Config) { c.Input = "" }, want: "no input file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate("summary")
			require.ErrorIs(t, err, ErrInvalid)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestWrite(t *testing.T) {
	cfg := Default()
	cfg.Steps = []string{"baseline"}

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	got := Default()
	require.NoError(t, Decode(&buf, &got))
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}
