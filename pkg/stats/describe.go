package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/willbeason/progresa/pkg/dataset"
	"gonum.org/v1/gonum/stat"
)

// Summary is the mean and sample standard deviation of one column over its
// present values. Mean is NaN when no value is present and Std is NaN when
// fewer than two are.
type Summary struct {
	Column  string
	N       int
	Missing int
	Mean    float64
	Std     float64
}

// Present returns the values not flagged as missing.
func Present(values []float64, missing []bool) []float64 {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if missing != nil && missing[i] {
			continue
		}
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// MeanStd returns the mean and sample standard deviation of xs.
func MeanStd(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return xs[0], math.NaN()
	default:
		return stat.MeanStdDev(xs, nil)
	}
}

// Describe summarises the given numeric columns over the rows of sub. The
// result is sorted by column name.
func Describe(sub *dataset.Subset, columns []string) ([]Summary, error) {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)

	result := make([]Summary, 0, len(sorted))
	for _, column := range sorted {
		values, missing, err := sub.Values(column)
		if err != nil {
			return nil, fmt.Errorf("describing %q: %w", column, err)
		}

		present := Present(values, missing)
		mean, std := MeanStd(present)
		result = append(result, Summary{
			Column:  column,
			N:       len(present),
			Missing: len(values) - len(present),
			Mean:    mean,
			Std:     std,
		})
	}
	return result, nil
}

// NumericColumns returns the sorted names of the numeric columns of ds, less
// those in exclude.
func NumericColumns(ds *dataset.Dataset, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	var names []string
	for _, name := range ds.Names() {
		if _, ok := skip[name]; ok {
			continue
		}
		if _, err := ds.Numeric(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
