package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Runner runs steps in order. A failing step is recorded and does not stop
// the steps after it.
type Runner struct {
	Logger *zap.Logger
	// Metrics is optional.
	Metrics *Metrics
	// OnStep, if set, is called after every step, successful or not.
	OnStep func(name string)
}

func NewRunner(logger *zap.Logger, metrics *Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Logger: logger, Metrics: metrics}
}

// Run executes steps against env. It only returns early when ctx is done;
// the report then holds the steps which finished.
func (r *Runner) Run(ctx context.Context, env *Env, steps []Step) (*Report, error) {
	report := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		Rows:    env.Data.Rows(),
	}
	logger := r.logger().With(zap.String("run_id", report.RunID.String()))
	if r.Metrics != nil {
		r.Metrics.Rows.Set(float64(report.Rows))
	}

	logger.Info("starting analysis",
		zap.Int("steps", len(steps)),
		zap.Int("rows", report.Rows),
		zap.Stringer("recoded", env.Data.Recoded()))

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(report.Started)
			return report, err
		}

		result, err := r.runStep(logger, env, s)
		if err != nil {
			report.Errors = append(report.Errors, &StepError{Step: s.Name(), Err: err})
		} else {
			report.Results = append(report.Results, result)
		}
		if r.OnStep != nil {
			r.OnStep(s.Name())
		}
	}

	report.Duration = time.Since(report.Started)
	logger.Info("finished analysis",
		zap.Int("succeeded", len(report.Results)),
		zap.Int("failed", len(report.Errors)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) runStep(logger *zap.Logger, env *Env, s Step) (result *Result, err error) {
	name := s.Name()
	logger = logger.With(zap.String("step", name))
	logger.Info("running step")

	if r.Metrics != nil {
		timer := prometheus.NewTimer(r.Metrics.StepDuration.WithLabelValues(name))
		defer timer.ObserveDuration()
	}
	start := time.Now()
	defer func() {
		r.Metrics.observe(name, result, err)
		if err != nil {
			logger.Warn("step failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		logger.Info("finished step",
			zap.Duration("duration", time.Since(start)),
			zap.Int("notes", len(result.Notes)))
	}()

	if err := env.Data.Require(s.Requires()); err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return s.Run(env)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
