package analysis

import (
	"fmt"

	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

// Env is the read-only input shared by every step.
type Env struct {
	Data    *dataset.Dataset
	Periods dataset.Periods

	TTest stats.TTestOptions
	SE    regress.SEKind
}

// NewEnv applies both recodings to ds, once and in order, and returns the
// environment the steps run in.
func NewEnv(ds *dataset.Dataset, p dataset.Periods, ttest stats.TTestOptions, se regress.SEKind) (*Env, error) {
	recoded, err := dataset.Recode(ds, p)
	if err != nil {
		return nil, fmt.Errorf("preparing dataset: %w", err)
	}
	return &Env{
		Data:    recoded,
		Periods: p,
		TTest:   ttest,
		SE:      se,
	}, nil
}

func (e *Env) spec(outcome string, terms ...regress.Term) regress.Spec {
	return regress.Spec{Outcome: outcome, Terms: terms, SE: e.SE}
}

func (e *Env) fit(r *Result, sub *dataset.Subset, spec regress.Spec) (*regress.Model, error) {
	m, err := regress.Fit(sub, spec)
	if err != nil {
		return nil, err
	}
	r.Subsets = append(r.Subsets, sub.String())
	r.Models = append(r.Models, m)
	return m, nil
}

var (
	poor     = dataset.Is(dataset.ColPoor, dataset.Poor)
	nonPoor  = dataset.Is(dataset.ColPoor, dataset.NonPoor)
	treated  = dataset.Is(dataset.ColProgresa, dataset.Treated)
	control  = dataset.Is(dataset.ColProgresa, dataset.Control)
	hasTime  = dataset.Present(dataset.ColTime)
	outcome  = dataset.ColEnrolled
	notTests = []string{
		dataset.ColYear, dataset.ColChild, dataset.ColVillage,
		dataset.ColTime, dataset.ColPoor, dataset.ColProgresa,
	}
)

func (e *Env) base() dataset.Condition { return dataset.Eq(dataset.ColYear, e.Periods.Base) }

func (e *Env) post() dataset.Condition { return dataset.Eq(dataset.ColYear, e.Periods.Post) }
