// Package analysis runs the Progresa evaluation as a plan of named steps over
// one recoded dataset.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/did"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

var ErrUnknownStep = errors.New("unknown step")

// AgreementTolerance is the relative tolerance within which the tabular and
// regression difference-in-differences estimates must agree.
const AgreementTolerance = 1e-6

// A Step is one named unit of the analysis.
type Step interface {
	Name() string
	// Requires lists the recodings the step needs from the dataset.
	Requires() dataset.Recoding
	Run(env *Env) (*Result, error)
}

type step struct {
	name        string
	description string
	requires    dataset.Recoding
	run         func(env *Env, r *Result) error
}

func (s step) Name() string { return s.name }

func (s step) Requires() dataset.Recoding { return s.requires }

func (s step) Run(env *Env) (*Result, error) {
	r := &Result{Step: s.name, Description: s.description}
	if err := s.run(env, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Plan returns every step in the order they are run.
func Plan() []Step {
	return []Step{
		step{
			name:        "summary",
			description: "Mean and standard deviation of every survey variable",
			run:         summary,
		},
		step{
			name:        "baseline",
			description: "Baseline differences between treatment and control villages for the poor",
			run:         baseline,
		},
		step{
			name:        "enrollment-by-education",
			description: "Baseline enrollment rate by household head education",
			run:         enrollmentByEducation,
		},
		step{
			name:        "village-enrollment",
			description: "Village enrollment rates of poor households in treated villages before and after treatment",
			run:         villageEnrollment,
		},
		step{
			name:        "simple-difference",
			description: "Simple difference: t-test of enrollment after treatment",
			run:         simpleDifference,
		},
		step{
			name:        "simple-regression",
			description: "Simple difference: regression of enrollment on treatment",
			run:         simpleRegression,
		},
		step{
			name:        "multiple-regression",
			description: "Simple difference with control variables",
			run:         multipleRegression,
		},
		step{
			name:        "did-table",
			description: "Difference-in-differences from the four group means",
			run:         didTable,
		},
		step{
			name:        "did-regression",
			description: "Difference-in-differences regression with control variables",
			requires:    dataset.RecodedAll,
			run:         didRegression,
		},
		step{
			name:        "did-check",
			description: "Tabular and regression difference-in-differences on the same rows",
			requires:    dataset.RecodedAll,
			run:         didCheck,
		},
		step{
			name:        "did-poverty",
			description: "Difference-in-differences across poverty status after treatment",
			requires:    dataset.RecodedAll,
			run:         didPoverty,
		},
		step{
			name:        "spillover",
			description: "Spillover effects on non-poor households",
			requires:    dataset.RecodedAll,
			run:         spillover,
		},
	}
}

// Names lists the names of the steps in plan.
func Names(plan []Step) []string {
	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.Name()
	}
	return names
}

// Select keeps the steps of plan named in names, in plan order. No names
// selects the whole plan.
func Select(plan []Step, names ...string) ([]Step, error) {
	if len(names) == 0 {
		return plan, nil
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	var selected []Step
	for _, s := range plan {
		if want[s.Name()] {
			selected = append(selected, s)
			delete(want, s.Name())
		}
	}

	for _, name := range names {
		if want[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, name)
		}
	}
	return selected, nil
}

func summary(env *Env, r *Result) error {
	all := env.Data.All()
	var err error
	r.Summary, err = stats.Describe(all, stats.NumericColumns(env.Data, notTests...))
	if err != nil {
		return err
	}
	r.Subsets = append(r.Subsets, all.String())
	return nil
}

func baseline(env *Env, r *Result) error {
	t := env.Data.Where(poor, env.base(), treated)
	c := env.Data.Where(poor, env.base(), control)

	results, err := stats.Balance(t, c, stats.NumericColumns(env.Data, notTests...), env.TTest)
	if len(results) == 0 && err != nil {
		return err
	}
	if err != nil {
		// Some columns could not be tested; the table is still useful.
		r.Notes = append(r.Notes, err.Error())
	}
	r.Tests = results
	r.Subsets = append(r.Subsets, t.String(), c.String())
	return nil
}

func enrollmentByEducation(env *Env, r *Result) error {
	sub := env.Data.Where(env.base())
	groups, err := stats.GroupMeans(sub, dataset.ColHohedu, outcome)
	if err != nil {
		return err
	}
	r.Panels = append(r.Panels, Panel{
		Name:    "enrollment-by-hohedu",
		By:      dataset.ColHohedu,
		Outcome: outcome,
		Groups:  groups,
		Plot:    Scatter,
	})
	r.Subsets = append(r.Subsets, sub.String())
	return nil
}

func villageEnrollment(env *Env, r *Result) error {
	periods := []struct {
		name string
		cond dataset.Condition
	}{
		{name: fmt.Sprintf("village-enrollment-%g", env.Periods.Base), cond: env.base()},
		{name: fmt.Sprintf("village-enrollment-%g", env.Periods.Post), cond: env.post()},
	}

	means := make([][]float64, len(periods))
	for i, p := range periods {
		sub := env.Data.Where(poor, treated, p.cond)
		groups, err := stats.GroupMeans(sub, dataset.ColVillage, outcome)
		if err != nil {
			return err
		}
		r.Panels = append(r.Panels, Panel{
			Name:    p.name,
			By:      dataset.ColVillage,
			Outcome: outcome,
			Groups:  groups,
			Plot:    Histogram,
		})
		r.Subsets = append(r.Subsets, sub.String())

		for _, g := range groups {
			means[i] = append(means[i], g.Mean)
		}
	}

	// Villages where no child has a recorded outcome have a NaN mean and are
	// omitted from the comparison.
	missing := make([][]bool, len(means))
	for i, ms := range means {
		missing[i] = make([]bool, len(ms))
		for j, m := range ms {
			missing[i][j] = math.IsNaN(m)
		}
		present := stats.Present(ms, missing[i])
		mean, std := stats.MeanStd(present)
		r.Summary = append(r.Summary, stats.Summary{
			Column:  periods[i].name,
			N:       len(present),
			Missing: len(ms) - len(present),
			Mean:    mean,
			Std:     std,
		})
	}

	opts := env.TTest
	if opts.Missing != stats.Omit {
		r.Notes = append(r.Notes, fmt.Sprintf(
			"missing-value policy %q replaced by %q: villages without a recorded %s are left out",
			opts.Missing, stats.Omit, outcome))
		opts.Missing = stats.Omit
	}
	test, err := stats.TTest(means[0], means[1], missing[0], missing[1], opts)
	if err != nil {
		return fmt.Errorf("comparing village means: %w", err)
	}
	test.Column = outcome
	r.Tests = append(r.Tests, test)
	return nil
}

func simpleDifference(env *Env, r *Result) error {
	t := env.Data.Where(poor, env.post(), treated)
	c := env.Data.Where(poor, env.post(), control)

	test, err := stats.CompareColumn(t, c, outcome, env.TTest)
	if err != nil {
		return err
	}
	r.Tests = append(r.Tests, test)
	r.Subsets = append(r.Subsets, t.String(), c.String())
	return nil
}

func simpleRegression(env *Env, r *Result) error {
	_, err := env.fit(r, env.Data.Where(poor, env.post()),
		env.spec(outcome, regress.Main(dataset.ColProgresa)))
	return err
}

func multipleRegression(env *Env, r *Result) error {
	_, err := env.fit(r, env.Data.Where(poor, env.post()),
		env.spec(outcome, mains(
			"age", dataset.ColProgresa, "indig", "dist_sec", "sex", dataset.ColHohedu,
			"welfare_index", "fam_n", "hohwag", "hohsex", "hohage",
		)...))
	return err
}

func didTable(env *Env, r *Result) error {
	cells := did.CellsFor(env.Data, env.Periods, poor)
	result, err := did.Estimate(cells, outcome)
	if err != nil {
		return err
	}
	r.DiD = &result
	r.Subsets = append(r.Subsets,
		cells.TreatedBefore.String(), cells.TreatedAfter.String(),
		cells.ControlBefore.String(), cells.ControlAfter.String())
	return nil
}

func didTerms(controls ...string) []regress.Term {
	terms := []regress.Term{
		regress.Main(dataset.ColProgresa),
		regress.Main(dataset.ColTime),
		regress.Interact(dataset.ColProgresa, dataset.ColTime),
	}
	return append(terms, mains(controls...)...)
}

func didRegression(env *Env, r *Result) error {
	_, err := env.fit(r, env.Data.Where(poor, hasTime),
		env.spec(outcome, didTerms("age", "indig", "dist_sec", "sex", dataset.ColHohedu)...))
	return err
}

func didCheck(env *Env, r *Result) error {
	m, err := env.fit(r, env.Data.Where(poor, hasTime), env.spec(outcome, didTerms()...))
	if err != nil {
		return err
	}
	b, err := m.Coefficient(dataset.ColProgresa + ":" + dataset.ColTime)
	if err != nil {
		return err
	}

	if err := didTable(env, r); err != nil {
		return err
	}

	r.Agreement = &Agreement{
		Tabular:    r.DiD.Estimate,
		Regression: b.Estimate,
		Tolerance:  AgreementTolerance,
		Agree:      did.Agrees(r.DiD.Estimate, b.Estimate, AgreementTolerance),
	}
	if !r.Agreement.Agree {
		r.Notes = append(r.Notes, fmt.Sprintf("tabular estimate %g and regression estimate %g disagree",
			r.DiD.Estimate, b.Estimate))
	}
	return nil
}

func didPoverty(env *Env, r *Result) error {
	terms := []regress.Term{
		regress.Main(dataset.ColProgresa),
		regress.Main(dataset.ColPoor),
		regress.Interact(dataset.ColProgresa, dataset.ColPoor),
	}
	terms = append(terms, mains("sex", "dist_sec", "min_dist", "dist_cap", dataset.ColHohedu, "age")...)
	_, err := env.fit(r, env.Data.Where(env.post()), env.spec(outcome, terms...))
	return err
}

func spillover(env *Env, r *Result) error {
	_, err := env.fit(r, env.Data.Where(nonPoor, hasTime),
		env.spec(outcome, didTerms("sex", "dist_sec", "min_dist", "dist_cap", dataset.ColHohedu, "age", "hohage")...))
	return err
}

func mains(columns ...string) []regress.Term {
	terms := make([]regress.Term, len(columns))
	for i, c := range columns {
		terms[i] = regress.Main(c)
	}
	return terms
}
