package analysis

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willbeason/progresa/pkg/did"
	"github.com/willbeason/progresa/pkg/regress"
	"github.com/willbeason/progresa/pkg/stats"
)

// PlotKind says how a Panel is best drawn.
type PlotKind uint8

const (
	NoPlot PlotKind = iota
	Scatter
	Histogram
)

// A Panel is a table of group means, such as enrollment by household-head
// education.
type Panel struct {
	Name    string
	By      string
	Outcome string
	Groups  []stats.Group
	Plot    PlotKind
}

// Agreement compares the tabular difference-in-differences estimate with the
// interaction coefficient of the matching regression.
type Agreement struct {
	Tabular    float64
	Regression float64
	Tolerance  float64
	Agree      bool
}

// A Result is everything one step produced. Only the fields relevant to the
// step are set.
type Result struct {
	Step        string
	Description string
	// Subsets describes the rows each part of the result was computed over.
	Subsets []string

	Summary   []stats.Summary
	Tests     []stats.TestResult
	Panels    []Panel
	Models    []*regress.Model
	DiD       *did.Result
	Agreement *Agreement

	// Notes are problems which did not stop the step, such as a column which
	// could not be tested.
	Notes []string
}

// StepError is the failure of one step. It names the step and unwraps to the
// cause.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// A Report is the outcome of one run of the plan.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Duration time.Duration

	Rows    int
	Results []*Result
	Errors  []*StepError
}
