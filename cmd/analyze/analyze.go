package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/progresa/pkg/analysis"
	"github.com/willbeason/progresa/pkg/config"
	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/report"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	FlagConfig        = "config"
	FlagOut           = "out"
	FlagSteps         = "steps"
	FlagEqualVariance = "equal-variance"
	FlagMissingPolicy = "missing-policy"
	FlagStandardError = "standard-error"
	FlagBaseYear      = "base-year"
	FlagPostYear      = "post-year"
	FlagJSON          = "json"
	FlagParquet       = "parquet"
	FlagFigures       = "figures"
	FlagMetrics       = "metrics"
	FlagList          = "list"
	FlagVerbose       = "verbose"
)

const (
	reportName  = "report.json"
	configName  = "config.yaml"
	metricsName = "metrics.prom"

	defaultWidth = 80
)

var ErrAnalyze = errors.New("running analysis")

func init() {
	addFlags(cmd.Flags())
}

func addFlags(flags *pflag.FlagSet) {
	defaults := config.Default()

	flags.String(FlagConfig, "", "YAML configuration file")
	flags.String(FlagOut, defaults.OutputDir, "directory for artifacts")
	flags.StringSlice(FlagSteps, nil, "steps to run (default: all)")
	flags.Bool(FlagEqualVariance, defaults.TTest.EqualVariance, "use Student's pooled-variance t-test instead of Welch's")
	flags.String(FlagMissingPolicy, defaults.TTest.MissingPolicy, "t-test missing values: omit|error")
	flags.String(FlagStandardError, defaults.Regression.StandardError, "regression standard errors: classical|robust")
	flags.Float64(FlagBaseYear, defaults.Recoding.Base, "survey year before treatment")
	flags.Float64(FlagPostYear, defaults.Recoding.Post, "survey year after treatment")
	flags.Bool(FlagJSON, defaults.Artifacts.JSON, "write the report as JSON")
	flags.Bool(FlagParquet, defaults.Artifacts.Parquet, "write result tables as Parquet")
	flags.Bool(FlagFigures, defaults.Artifacts.Figures, "draw figures")
	flags.Bool(FlagMetrics, defaults.Artifacts.Metrics, "write run metrics in the Prometheus text format")
	flags.Bool(FlagList, false, "list the analysis steps and exit")
	flags.BoolP(FlagVerbose, "v", false, "development logging")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "analyze [INPUT]",
	Short:   "Evaluates the impact of Progresa on school enrollment",
	Args:    cobra.MaximumNArgs(1),
	Version: "0.1.0",
	RunE:    runE,
}

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	plan := analysis.Plan()

	list, err := cmd.Flags().GetBool(FlagList)
	if err != nil {
		return err
	}
	if list {
		for _, name := range analysis.Names(plan) {
			fmt.Println(name)
		}
		return nil
	}

	cfg, err := loadConfig(cmd.Flags(), args)
	if err != nil {
		return err
	}
	err = cfg.Validate(analysis.Names(plan)...)
	if err != nil {
		return err
	}

	verbose, err := cmd.Flags().GetBool(FlagVerbose)
	if err != nil {
		return err
	}
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("%w: creating logger: %w", ErrAnalyze, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	start := time.Now()
	ds, err := dataset.Open(ctx, cfg.Input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalyze, err)
	}
	logger.Info("loaded dataset",
		zap.String("input", cfg.Input),
		zap.Int("rows", ds.Rows()),
		zap.Int("columns", len(ds.Names())),
		zap.Duration("duration", time.Since(start)))

	opts, err := cfg.TTestOptions()
	if err != nil {
		return err
	}
	se, err := cfg.SEKind()
	if err != nil {
		return err
	}
	env, err := analysis.NewEnv(ds, cfg.Recoding, opts, se)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalyze, err)
	}

	steps, err := analysis.Select(plan, cfg.Steps...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalyze, err)
	}

	metrics := analysis.NewMetrics()
	runner := analysis.NewRunner(logger, metrics)

	p := mpb.New(mpb.WithWidth(terminalWidth()), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(len(steps)),
		mpb.PrependDecorators(decor.Name("steps")),
		mpb.PrependDecorators(decor.CountersNoUnit("%d/%d", decor.WCSyncSpace)),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.BarRemoveOnComplete(),
	)
	stepStart := time.Now()
	runner.OnStep = func(string) {
		bar.IncrBy(1, time.Since(stepStart))
		stepStart = time.Now()
	}

	rep, err := runner.Run(ctx, env, steps)
	p.Wait()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalyze, err)
	}

	err = report.Text(os.Stdout, rep)
	if err != nil {
		return err
	}

	err = writeArtifacts(logger, cfg, rep, metrics)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalyze, err)
	}

	if len(rep.Errors) > 0 {
		return fmt.Errorf("%w: %d of %d steps failed", ErrAnalyze, len(rep.Errors), len(steps))
	}
	return nil
}

// loadConfig reads the configuration file, if any, over the defaults and then
// applies the flags the user set.
func loadConfig(flags *pflag.FlagSet, args []string) (config.Config, error) {
	path, err := flags.GetString(FlagConfig)
	if err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}

	err = applyFlags(flags, &cfg)
	if err != nil {
		return cfg, err
	}
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	return cfg, nil
}

// applyFlags copies every flag the user set explicitly onto cfg. Flags left at
// their default do not override the configuration file.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case FlagOut:
			cfg.OutputDir, err = flags.GetString(FlagOut)
		case FlagSteps:
			cfg.Steps, err = flags.GetStringSlice(FlagSteps)
		case FlagEqualVariance:
			cfg.TTest.EqualVariance, err = flags.GetBool(FlagEqualVariance)
		case FlagMissingPolicy:
			cfg.TTest.MissingPolicy, err = flags.GetString(FlagMissingPolicy)
		case FlagStandardError:
			cfg.Regression.StandardError, err = flags.GetString(FlagStandardError)
		case FlagBaseYear:
			cfg.Recoding.Base, err = flags.GetFloat64(FlagBaseYear)
		case FlagPostYear:
			cfg.Recoding.Post, err = flags.GetFloat64(FlagPostYear)
		case FlagJSON:
			cfg.Artifacts.JSON, err = flags.GetBool(FlagJSON)
		case FlagParquet:
			cfg.Artifacts.Parquet, err = flags.GetBool(FlagParquet)
		case FlagFigures:
			cfg.Artifacts.Figures, err = flags.GetBool(FlagFigures)
		case FlagMetrics:
			cfg.Artifacts.Metrics, err = flags.GetBool(FlagMetrics)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("flag --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

func writeArtifacts(logger *zap.Logger, cfg config.Config, rep *analysis.Report, metrics *analysis.Metrics) error {
	a := cfg.Artifacts
	if !a.JSON && !a.Parquet && !a.Figures && !a.Metrics {
		return nil
	}

	err := os.MkdirAll(cfg.OutputDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	err = writeFile(filepath.Join(cfg.OutputDir, configName), cfg.Write)
	if err != nil {
		return err
	}
	written = append(written, configName)

	if a.JSON {
		path := filepath.Join(cfg.OutputDir, reportName)
		err = writeFile(path, func(w io.Writer) error {
			return report.WriteJSON(w, rep)
		})
		if err != nil {
			return err
		}
		written = append(written, reportName)
	}

	if a.Parquet {
		paths, err := report.WriteParquet(cfg.OutputDir, rep)
		if err != nil {
			return err
		}
		written = append(written, bases(paths)...)
	}

	if a.Figures {
		paths, err := report.WriteFigures(cfg.OutputDir, rep)
		if err != nil {
			return err
		}
		written = append(written, bases(paths)...)
	}

	if a.Metrics {
		err = metrics.WriteTextfile(filepath.Join(cfg.OutputDir, metricsName))
		if err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		written = append(written, metricsName)
	}

	logger.Info("wrote artifacts",
		zap.String("dir", cfg.OutputDir),
		zap.Strings("files", written))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	err = write(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return f.Close()
}

func bases(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
