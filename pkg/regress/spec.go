package regress

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDegenerateDesign is returned when the design matrix does not have
	// full column rank.
	ErrDegenerateDesign = errors.New("degenerate design")

	ErrUnknownSE    = errors.New("unknown standard error kind")
	ErrTermNotFound = errors.New("term not found")
	ErrSpec         = errors.New("invalid model specification")
)

// SEKind selects how coefficient standard errors are estimated.
type SEKind uint8

const (
	// Classical assumes homoskedastic errors: s^2 (X'X)^-1.
	Classical SEKind = iota
	// Robust is the HC1 heteroskedasticity-consistent sandwich estimator.
	Robust
)

func (k SEKind) String() string {
	switch k {
	case Classical:
		return "classical"
	case Robust:
		return "robust"
	default:
		return fmt.Sprintf("SEKind(%d)", uint8(k))
	}
}

// ParseSEKind accepts "classical" and "robust".
func ParseSEKind(s string) (SEKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classical", "nonrobust", "":
		return Classical, nil
	case "robust", "hc1":
		return Robust, nil
	default:
		return Classical, fmt.Errorf("%w: %q", ErrUnknownSE, s)
	}
}

type termKind uint8

const (
	mainEffect termKind = iota
	factor
	interaction
)

// A Term is one right-hand-side element of a model.
type Term struct {
	kind    termKind
	columns []string
}

// Main enters a column as is. Categorical columns are expanded into
// indicators.
func Main(column string) Term {
	return Term{kind: mainEffect, columns: []string{column}}
}

// Factor expands a column into indicators even if it is numeric.
func Factor(column string) Term {
	return Term{kind: factor, columns: []string{column}}
}

// Interact enters the products of the expanded columns of a and b.
func Interact(a, b string) Term {
	return Term{kind: interaction, columns: []string{a, b}}
}

// Columns returns the dataset columns the term refers to.
func (t Term) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t Term) String() string {
	switch t.kind {
	case factor:
		return fmt.Sprintf("C(%s)", t.columns[0])
	case interaction:
		return strings.Join(t.columns, ":")
	default:
		return t.columns[0]
	}
}

// Spec is a linear model of Outcome on Terms with an intercept.
type Spec struct {
	Outcome string
	Terms   []Term
	SE      SEKind
}

// String writes the model in formula notation.
func (s Spec) String() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		parts[i] = t.String()
	}
	if len(parts) == 0 {
		return s.Outcome + " ~ 1"
	}
	return s.Outcome + " ~ " + strings.Join(parts, " + ")
}

// columns lists every column the model refers to, outcome first, without
// repetition.
func (s Spec) columns() []string {
	seen := map[string]struct{}{s.Outcome: {}}
	result := []string{s.Outcome}
	for _, t := range s.Terms {
		for _, c := range t.columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			result = append(result, c)
		}
	}
	return result
}

func (s Spec) validate() error {
	if s.Outcome == "" {
		return fmt.Errorf("%w: no outcome", ErrSpec)
	}
	for _, t := range s.Terms {
		if len(t.columns) == 0 {
			return fmt.Errorf("%w: empty term", ErrSpec)
		}
		for _, c := range t.columns {
			if c == "" {
				return fmt.Errorf("%w: term %q has an empty column name", ErrSpec, t)
			}
			if c == s.Outcome {
				return fmt.Errorf("%w: outcome %q is also a predictor", ErrSpec, c)
			}
		}
	}
	if s.SE != Classical && s.SE != Robust {
		return fmt.Errorf("%w: %s", ErrUnknownSE, s.SE)
	}
	return nil
}
