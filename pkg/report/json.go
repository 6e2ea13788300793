package report

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/willbeason/progresa/pkg/analysis"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

// JSON is the stored form of a report. Statistics which are undefined (NaN)
// are null.
type JSON struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Seconds  float64   `json:"duration_seconds"`
	Rows     int       `json:"rows"`
	Steps    []Step    `json:"steps"`
	Failures []Failure `json:"failures,omitempty"`
}

type Step struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Subsets     []string   `json:"subsets,omitempty"`
	Summary     []Summary  `json:"summary,omitempty"`
	Tests       []Test     `json:"tests,omitempty"`
	Panels      []Panel    `json:"panels,omitempty"`
	Models      []Model    `json:"models,omitempty"`
	DiD         *DiD       `json:"did,omitempty"`
	Agreement   *Agreement `json:"agreement,omitempty"`
	Notes       []string   `json:"notes,omitempty"`
}

type Failure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

type Summary struct {
	Column  string   `json:"column"`
	N       int      `json:"n"`
	Missing int      `json:"missing"`
	Mean    *float64 `json:"mean"`
	Std     *float64 `json:"std"`
}

type Test struct {
	Column        string   `json:"column"`
	MeanA         *float64 `json:"mean_a"`
	MeanB         *float64 `json:"mean_b"`
	NA            int      `json:"n_a"`
	NB            int      `json:"n_b"`
	Diff          *float64 `json:"diff"`
	Statistic     *float64 `json:"statistic"`
	DF            *float64 `json:"df"`
	PValue        *float64 `json:"p_value"`
	Significant   bool     `json:"significant"`
	EqualVariance bool     `json:"equal_variance"`
}

type Panel struct {
	Name    string  `json:"name"`
	By      string  `json:"by"`
	Outcome string  `json:"outcome"`
	Groups  []Group `json:"groups"`
}

type Group struct {
	Label string   `json:"label"`
	N     int      `json:"n"`
	Mean  *float64 `json:"mean"`
}

type Model struct {
	Formula      string        `json:"formula"`
	N            int           `json:"n"`
	Dropped      int           `json:"dropped"`
	DFModel      int           `json:"df_model"`
	DFResid      int           `json:"df_resid"`
	R2           *float64      `json:"r2"`
	AdjR2        *float64      `json:"adj_r2"`
	FStat        *float64      `json:"f_stat"`
	FPValue      *float64      `json:"f_p_value"`
	SE           string        `json:"standard_error"`
	Coefficients []Coefficient `json:"coefficients"`
}

type Coefficient struct {
	Term     string   `json:"term"`
	Estimate *float64 `json:"estimate"`
	StdErr   *float64 `json:"std_err"`
	T        *float64 `json:"t"`
	PValue   *float64 `json:"p_value"`
	CILow    *float64 `json:"ci_low"`
	CIHigh   *float64 `json:"ci_high"`
}

type DiD struct {
	Outcome     string   `json:"outcome"`
	Means       []Group  `json:"means"`
	DiffTreated *float64 `json:"diff_treated"`
	DiffControl *float64 `json:"diff_control"`
	Estimate    *float64 `json:"estimate"`
}

type Agreement struct {
	Tabular    *float64 `json:"tabular"`
	Regression *float64 `json:"regression"`
	Tolerance  float64  `json:"tolerance"`
	Agree      bool     `json:"agree"`
}

// WriteJSON stores report as indented JSON.
func WriteJSON(w io.Writer, report *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewJSON(report))
}

func NewJSON(report *analysis.Report) JSON {
	out := JSON{
		RunID:   report.RunID.String(),
		Started: report.Started,
		Seconds: report.Duration.Seconds(),
		Rows:    report.Rows,
		Steps:   make([]Step, len(report.Results)),
	}
	for i, r := range report.Results {
		out.Steps[i] = newStep(r)
	}
	for _, err := range report.Errors {
		out.Failures = append(out.Failures, Failure{Step: err.Step, Error: err.Err.Error()})
	}
	return out
}

func newStep(r *analysis.Result) Step {
	s := Step{
		Name:        r.Step,
		Description: r.Description,
		Subsets:     r.Subsets,
		Notes:       r.Notes,
	}
	for _, sum := range r.Summary {
		s.Summary = append(s.Summary, newSummary(sum))
	}
	for _, t := range r.Tests {
		s.Tests = append(s.Tests, newTest(t))
	}
	for _, p := range r.Panels {
		panel := Panel{Name: p.Name, By: p.By, Outcome: p.Outcome, Groups: make([]Group, len(p.Groups))}
		for i, g := range p.Groups {
			panel.Groups[i] = Group{Label: g.Label, N: g.N, Mean: number(g.Mean)}
		}
		s.Panels = append(s.Panels, panel)
	}
	for _, m := range r.Models {
		s.Models = append(s.Models, newModel(m))
	}
	if d := r.DiD; d != nil {
		s.DiD = &DiD{
			Outcome:     d.Outcome,
			DiffTreated: number(d.DiffTreated),
			DiffControl: number(d.DiffControl),
			Estimate:    number(d.Estimate),
		}
		for _, m := range d.Means {
			s.DiD.Means = append(s.DiD.Means, Group{Label: m.Cell, N: m.N, Mean: number(m.Value)})
		}
	}
	if a := r.Agreement; a != nil {
		s.Agreement = &Agreement{
			Tabular:    number(a.Tabular),
			Regression: number(a.Regression),
			Tolerance:  a.Tolerance,
			Agree:      a.Agree,
		}
	}
	return s
}

func newSummary(s stats.Summary) Summary {
	return Summary{
		Column:  s.Column,
		N:       s.N,
		Missing: s.Missing,
		Mean:    number(s.Mean),
		Std:     number(s.Std),
	}
}

func newTest(t stats.TestResult) Test {
	return Test{
		Column:        t.Column,
		MeanA:         number(t.MeanA),
		MeanB:         number(t.MeanB),
		NA:            t.NA,
		NB:            t.NB,
		Diff:          number(t.Diff),
		Statistic:     number(t.Statistic),
		DF:            number(t.DF),
		PValue:        number(t.PValue),
		Significant:   t.Significant,
		EqualVariance: t.EqualVariance,
	}
}

func newModel(m *regress.Model) Model {
	out := Model{
		Formula:      m.Formula,
		N:            m.N,
		Dropped:      m.Dropped,
		DFModel:      m.DFModel,
		DFResid:      m.DFResid,
		R2:           number(m.R2),
		AdjR2:        number(m.AdjR2),
		FStat:        number(m.FStat),
		FPValue:      number(m.FPValue),
		SE:           m.SE.String(),
		Coefficients: make([]Coefficient, len(m.Terms)),
	}
	for i, c := range m.Terms {
		out.Coefficients[i] = Coefficient{
			Term:     c.Name,
			Estimate: number(c.Estimate),
			StdErr:   number(c.StdErr),
			T:        number(c.T),
			PValue:   number(c.PValue),
			CILow:    number(c.CILow),
			CIHigh:   number(c.CIHigh),
		}
	}
	return out
}

// number is nil for values JSON cannot represent.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
