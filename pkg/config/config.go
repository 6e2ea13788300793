// Package config holds the options of an analysis run. Options come from
// Default, are overlaid by an optional YAML file and finally by command-line
// flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the complete set of options of an analysis run.
type Config struct {
	// Input is the observations file: .csv, .csv.gz, .dta or .parquet.
	Input     string `yaml:"input" json:"input"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// Steps selects analysis steps by name, in plan order. Empty runs all.
	Steps []string `yaml:"steps" json:"steps"`

	TTest      TTestConfig      `yaml:"ttest" json:"ttest"`
	Regression RegressionConfig `yaml:"regression" json:"regression"`
	Recoding   dataset.Periods  `yaml:"recoding" json:"recoding"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts" json:"artifacts"`
}

type TTestConfig struct {
	EqualVariance bool   `yaml:"equal_variance" json:"equal_variance"`
	MissingPolicy string `yaml:"missing_policy" json:"missing_policy"`
}

type RegressionConfig struct {
	StandardError string `yaml:"standard_error" json:"standard_error"`
}

// ArtifactsConfig selects the files written to OutputDir.
type ArtifactsConfig struct {
	JSON    bool `yaml:"json" json:"json"`
	Parquet bool `yaml:"parquet" json:"parquet"`
	Figures bool `yaml:"figures" json:"figures"`
	// Metrics writes run metrics in the Prometheus text format.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// Default returns the options used when nothing else is specified.
func Default() Config {
	return Config{
		Input:     "progresa_sample.csv.gz",
		OutputDir: "out",
		TTest: TTestConfig{
			EqualVariance: false,
			MissingPolicy: stats.Omit.String(),
		},
		Regression: RegressionConfig{
			StandardError: regress.Classical.String(),
		},
		Recoding: dataset.DefaultPeriods,
		Artifacts: ArtifactsConfig{
			JSON: true,
		},
	}
}

// Load reads a YAML file over Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading %q: %w", ErrInvalid, path, err)
	}

	if err := Decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %q: %w", ErrInvalid, path, err)
	}
	return cfg, nil
}

// Decode overlays the YAML document in r onto cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		// An empty file keeps every default.
		return nil
	}
	return err
}

// Validate checks the enumerated options. If knownSteps is not empty every
// selected step must be one of them.
func (c Config) Validate(knownSteps ...string) error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("no input file"))
	}
	if _, err := c.TTestOptions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SEKind(); err != nil {
		errs = append(errs, err)
	}
	if c.Recoding.Base == c.Recoding.Post {
		errs = append(errs, fmt.Errorf("recoding: base and post year are both %g", c.Recoding.Base))
	}

	if len(knownSteps) > 0 {
		known := make(map[string]struct{}, len(knownSteps))
		for _, s := range knownSteps {
			known[s] = struct{}{}
		}
		for _, s := range c.Steps {
			if _, ok := known[s]; !ok {
				errs = append(errs, fmt.Errorf("unknown step %q", s))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// TTestOptions converts the t-test section.
func (c Config) TTestOptions() (stats.TTestOptions, error) {
	policy, err := stats.ParseMissingPolicy(c.TTest.MissingPolicy)
	if err != nil {
		return stats.TTestOptions{}, fmt.Errorf("ttest.missing_policy: %w", err)
	}
	return stats.TTestOptions{
		EqualVariance: c.TTest.EqualVariance,
		Missing:       policy,
	}, nil
}

// SEKind converts the regression section.
func (c Config) SEKind() (regress.SEKind, error) {
	kind, err := regress.ParseSEKind(c.Regression.StandardError)
	if err != nil {
		return regress.Classical, fmt.Errorf("regression.standard_error: %w", err)
	}
	return kind, nil
}

// Write stores cfg as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
