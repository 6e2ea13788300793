package regress

import (
	"fmt"
)

// ConfidenceLevel is the coverage of the reported coefficient intervals.
const ConfidenceLevel = 0.95

// A Coefficient is one fitted term.
type Coefficient struct {
	Name     string
	Estimate float64
	StdErr   float64
	T        float64
	PValue   float64
	CILow    float64
	CIHigh   float64
}

// A Model is an ordinary least squares fit. It is not modified after Fit
// returns it.
type Model struct {
	Formula string
	Outcome string
	Terms   []Coefficient

	// N is the number of observations used and Dropped the number removed by
	// listwise deletion.
	N       int
	Dropped int

	DFModel int
	DFResid int

	R2    float64
	AdjR2 float64
	// FStat tests that every coefficient but the intercept is zero, using the
	// model's covariance estimate.
	FStat   float64
	FPValue float64

	SE SEKind
}

// Coefficient returns the named term.
func (m *Model) Coefficient(name string) (Coefficient, error) {
	for _, c := range m.Terms {
		if c.Name == name {
			return c, nil
		}
	}
	return Coefficient{}, fmt.Errorf("%w: %q in %q", ErrTermNotFound, name, m.Formula)
}

// Names returns the term names in design order.
func (m *Model) Names() []string {
	names := make([]string, len(m.Terms))
	for i, c := range m.Terms {
		names[i] = c.Name
	}
	return names
}
