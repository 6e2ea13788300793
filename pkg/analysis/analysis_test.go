package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var surveyColumns = []string{
	"year", "folnum", "village", "progresa", "poor", "sc",
	"age", "sex", "indig", "dist_sec", "min_dist", "dist_cap",
	"hohedu", "hohwag", "hohsex", "hohage", "welfare_index", "fam_n",
}

// survey writes a synthetic two-round panel: 24 villages, half of them
// treated, 20 children each.
func survey(t *testing.T) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(1998))

	var b strings.Builder
	b.WriteString(strings.Join(surveyColumns, ","))
	b.WriteByte('\n')

	child := 0
	for village := 1; village <= 24; village++ {
		treated := village%2 == 0
		progresa := "0"
		if treated {
			progresa = "basal"
		}
		distSec := 1 + 5*rng.Float64()
		minDist := 10 + 100*rng.Float64()
		distCap := 50 + 200*rng.Float64()

		for k := 0; k < 20; k++ {
			child++
			isPoor := k%4 != 0
			poor := "no pobre"
			if isPoor {
				poor = "pobre"
			}
			age := 6 + rng.Intn(11)
			sex := rng.Intn(2)
			indig := rng.Intn(2)
			hohedu := rng.Intn(12)
			hohwag := 100 * rng.Float64()
			hohsex := rng.Intn(2)
			hohage := 25 + rng.Intn(40)
			welfare := 600 + 300*rng.Float64()
			famN := 2 + rng.Intn(8)

			for _, year := range []int{97, 98} {
				p := 0.55 + 0.02*float64(hohedu) - 0.01*float64(age-6)
				if treated && year == 98 {
					p += 0.1
				}
				sc := "0"
				if rng.Float64() < p {
					sc = "1"
				}
				if rng.Intn(25) == 0 {
					sc = ""
				}
				fmt.Fprintf(&b, "%d,%d,%d,%s,%s,%s,%d,%d,%d,%.3f,%.3f,%.3f,%d,%.2f,%d,%d,%.1f,%d\n",
					year, child, village, progresa, poor, sc,
					age+year-97, sex, indig, distSec, minDist, distCap,
					hohedu, hohwag, hohsex, hohage, welfare, famN)
			}
		}
	}

	ds, err := dataset.LoadCSV(strings.NewReader(b.String()))
	require.NoError(t, err)
	return ds
}

func newEnv(t *testing.T) *Env {
	t.Helper()
	env, err := NewEnv(survey(t), dataset.DefaultPeriods, stats.TTestOptions{}, regress.Classical)
	require.NoError(t, err)
	return env
}

func TestNewEnv(t *testing.T) {
	env := newEnv(t)
	require.Equal(t, dataset.RecodedAll, env.Data.Recoded())
	require.Equal(t, 960, env.Data.Rows())

	_, err := NewEnv(survey(t), dataset.Periods{Base: 97, Post: 97}, stats.TTestOptions{}, regress.Classical)
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	plan := Plan()
	require.Len(t, plan, 12)

	got, err := Select(plan, "did-check", "summary")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"summary", "did-check"}, Names(got)); diff != "" {
		t.Errorf("Select keeps plan order (-want +got):\n%s", diff)
	}

	got, err = Select(plan)
	require.NoError(t, err)
	require.Equal(t, Names(plan), Names(got))

	_, err = Select(plan, "summary", "sumary")
	require.ErrorIs(t, err, ErrUnknownStep)
	require.ErrorContains(t, err, `"sumary"`)
}

func TestRunner_Plan(t *testing.T) {
	env := newEnv(t)
	metrics := NewMetrics()
	runner := NewRunner(zaptest.NewLogger(t), metrics)

	var seen []string
	runner.OnStep = func(name string) { seen = append(seen, name) }

	report, err := runner.Run(context.Background(), env, Plan())
	require.NoError(t, err)
	for _, e := range report.Errors {
		t.Errorf("unexpected failure: %v", e)
	}
	require.Len(t, report.Results, 12)
	require.Equal(t, Names(Plan()), seen)
	require.Equal(t, 960, report.Rows)
	require.NotZero(t, report.RunID)

	results := make(map[string]*Result)
	for _, r := range report.Results {
		results[r.Step] = r
	}

	// The coefficient of a binary regressor is the difference of group means.
	diff := results["simple-difference"].Tests[0]
	simple := results["simple-regression"].Models[0]
	b, err := simple.Coefficient(dataset.ColProgresa)
	require.NoError(t, err)
	require.InDelta(t, diff.Diff, b.Estimate, 1e-9)
	require.Equal(t, diff.NA+diff.NB, simple.N)

	check := results["did-check"]
	require.NotNil(t, check.Agreement)
	require.True(t, check.Agreement.Agree, "tabular %v, regression %v",
		check.Agreement.Tabular, check.Agreement.Regression)
	require.InDelta(t, results["did-table"].DiD.Estimate, check.DiD.Estimate, 1e-12)

	village := results["village-enrollment"]
	require.Len(t, village.Panels, 2)
	require.Len(t, village.Panels[0].Groups, 12)
	require.Len(t, village.Tests, 1)
	require.Len(t, village.Summary, 2)
	require.Empty(t, village.Notes)

	m, err := results["did-poverty"].Models[0].Coefficient("progresa:poor")
	require.NoError(t, err)
	require.False(t, m.StdErr <= 0)

	require.InDelta(t, 960, testutil.ToFloat64(metrics.Rows), 0)
	for _, name := range Names(Plan()) {
		require.InDelta(t, 1, testutil.ToFloat64(metrics.StepsTotal.WithLabelValues(name, "success")), 0, name)
	}
	require.InDelta(t, 12, testutil.ToFloat64(metrics.Coefficients.WithLabelValues("multiple-regression")), 0)
}

func TestVillageEnrollment_MissingPolicy(t *testing.T) {
	env := newEnv(t)
	env.TTest.Missing = stats.Error

	steps, err := Select(Plan(), "village-enrollment")
	require.NoError(t, err)

	result, err := steps[0].Run(env)
	require.NoError(t, err)
	require.Len(t, result.Tests, 1)
	require.Len(t, result.Notes, 1)
	require.Contains(t, result.Notes[0], `"error" replaced by "omit"`)
}

func TestRunner_StepErrors(t *testing.T) {
	env := newEnv(t)
	metrics := NewMetrics()
	runner := NewRunner(zap.NewNop(), metrics)

	steps := []Step{
		step{name: "empty", run: func(env *Env, r *Result) error {
			_, _, err := stats.Mean(env.Data.Where(dataset.Eq(dataset.ColYear, 2000)), dataset.ColEnrolled)
			return err
		}},
		step{name: "panics", run: func(*Env, *Result) error {
			panic("index out of range")
		}},
		Plan()[0],
	}

	report, err := runner.Run(context.Background(), env, steps)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, report.Errors, 2)

	var stepErr *StepError
	require.True(t, errors.As(report.Errors[0], &stepErr))
	require.Equal(t, "empty", stepErr.Step)
	require.ErrorIs(t, report.Errors[0], stats.ErrInsufficientData)
	require.ErrorContains(t, report.Errors[0], `step "empty"`)

	require.ErrorContains(t, report.Errors[1], "index out of range")
	require.InDelta(t, 1, testutil.ToFloat64(metrics.StepsTotal.WithLabelValues("panics", "error")), 0)
}

func TestRunner_RequiresRecoding(t *testing.T) {
	env := &Env{Data: survey(t), Periods: dataset.DefaultPeriods}
	steps, err := Select(Plan(), "did-check")
	require.NoError(t, err)

	report, err := NewRunner(nil, nil).Run(context.Background(), env, steps)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	require.ErrorIs(t, report.Errors[0], dataset.ErrNotRecoded)
}

func TestRunner_Canceled(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(nil, nil).Run(ctx, env, Plan())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, report.Results)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	env := newEnv(t)
	metrics := NewMetrics()
	steps, err := Select(Plan(), "summary")
	require.NoError(t, err)

	_, err = NewRunner(nil, metrics).Run(context.Background(), env, steps)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "progresa.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(got), `progresa_steps_total{result="success",step="summary"} 1`)
	require.Contains(t, string(got), "progresa_dataset_rows 960")
}
