package stats

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/willbeason/progresa/pkg/dataset"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the fixed threshold below which a two-sided p-value is
// reported as significant.
const SignificanceLevel = 0.05

// MissingPolicy selects what a test does with missing values.
type MissingPolicy uint8

const (
	// Omit drops missing values from each group independently.
	Omit MissingPolicy = iota
	// Error fails the test if either group has a missing value.
	Error
)

func (p MissingPolicy) String() string {
	switch p {
	case Omit:
		return "omit"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("MissingPolicy(%d)", uint8(p))
	}
}

var ErrUnknownPolicy = errors.New("unknown missing-value policy")

// ParseMissingPolicy accepts "omit" and "error".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "omit", "":
		return Omit, nil
	case "error":
		return Error, nil
	default:
		return Omit, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// TTestOptions configures a two-sample t-test. The zero value is Welch's test
// with missing values omitted.
type TTestOptions struct {
	// EqualVariance selects Student's pooled-variance test.
	EqualVariance bool
	Missing       MissingPolicy
}

// A TestResult is the outcome of one two-sample t-test of group A against
// group B.
type TestResult struct {
	Column string

	MeanA, MeanB float64
	NA, NB       int
	// Diff is MeanA - MeanB.
	Diff float64

	Statistic float64
	DF        float64
	PValue    float64

	Significant   bool
	EqualVariance bool
}

// TTest runs a two-sample t-test of a against b. missingA and missingB may be
// nil; NaN values are always treated as missing.
func TTest(a, b []float64, missingA, missingB []bool, opts TTestOptions) (TestResult, error) {
	pa := Present(a, missingA)
	pb := Present(b, missingB)

	if opts.Missing == Error {
		if n := len(a) - len(pa); n > 0 {
			return TestResult{}, fmt.Errorf("%w: %d in group A", ErrMissingValues, n)
		}
		if n := len(b) - len(pb); n > 0 {
			return TestResult{}, fmt.Errorf("%w: %d in group B", ErrMissingValues, n)
		}
	}

	na, nb := len(pa), len(pb)
	if na < 2 || nb < 2 {
		return TestResult{}, fmt.Errorf("%w: groups have %d and %d present values, need at least 2 each",
			ErrInsufficientData, na, nb)
	}

	ma, va := stat.MeanVariance(pa, nil)
	mb, vb := stat.MeanVariance(pb, nil)
	fa, fb := float64(na), float64(nb)

	var se, df float64
	if opts.EqualVariance {
		pooled := ((fa-1)*va + (fb-1)*vb) / (fa + fb - 2)
		se = math.Sqrt(pooled * (1/fa + 1/fb))
		df = fa + fb - 2
	} else {
		qa, qb := va/fa, vb/fb
		se = math.Sqrt(qa + qb)
		df = (qa + qb) * (qa + qb) / (qa*qa/(fa-1) + qb*qb/(fb-1))
	}
	if se == 0 || math.IsNaN(se) {
		return TestResult{}, fmt.Errorf("%w: both groups have zero variance", ErrInsufficientData)
	}

	t := (ma - mb) / se
	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))

	return TestResult{
		MeanA:         ma,
		MeanB:         mb,
		NA:            na,
		NB:            nb,
		Diff:          ma - mb,
		Statistic:     t,
		DF:            df,
		PValue:        p,
		Significant:   p < SignificanceLevel,
		EqualVariance: opts.EqualVariance,
	}, nil
}

// CompareColumn tests column in group a against group b.
func CompareColumn(a, b *dataset.Subset, column string, opts TTestOptions) (TestResult, error) {
	va, ma, err := a.Values(column)
	if err != nil {
		return TestResult{}, fmt.Errorf("comparing %q: %w", column, err)
	}
	vb, mb, err := b.Values(column)
	if err != nil {
		return TestResult{}, fmt.Errorf("comparing %q: %w", column, err)
	}

	result, err := TTest(va, vb, ma, mb, opts)
	if err != nil {
		return TestResult{}, fmt.Errorf("comparing %q: %w", column, err)
	}
	result.Column = column
	return result, nil
}

// Balance tests every column once. Results are returned for the columns which
// could be tested, in the given order; the failures are joined into the
// returned error.
func Balance(a, b *dataset.Subset, columns []string, opts TTestOptions) ([]TestResult, error) {
	results := make([]TestResult, 0, len(columns))
	var errs []error
	for _, column := range columns {
		result, err := CompareColumn(a, b, column, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}
