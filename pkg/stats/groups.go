package stats

import (
	"fmt"
	"sort"

	"github.com/willbeason/progresa/pkg/dataset"
)

// A Group is the mean of an outcome over the rows sharing one value of a
// grouping column.
type Group struct {
	Label string
	// Key is the numeric value of the grouping column, or the level index for
	// categorical columns.
	Key  float64
	N    int
	Mean float64
}

// GroupMeans computes the mean of outcome for every distinct value of by over
// the rows of sub, ordered by key. Rows where by is missing are skipped; a
// group whose outcome is always missing has a NaN mean.
func GroupMeans(sub *dataset.Subset, by, outcome string) ([]Group, error) {
	src := sub.Source()
	key, err := src.Column(by)
	if err != nil {
		return nil, fmt.Errorf("grouping by %q: %w", by, err)
	}
	y, err := src.Numeric(outcome)
	if err != nil {
		return nil, fmt.Errorf("grouping %q: %w", outcome, err)
	}
	rows, err := sub.Rows()
	if err != nil {
		return nil, err
	}

	type acc struct {
		label  string
		values []float64
	}
	groups := make(map[float64]*acc)
	for _, i := range rows {
		if key.IsMissing(i) {
			continue
		}
		k := key.Value(i)
		g, ok := groups[k]
		if !ok {
			g = &acc{label: key.Label(i)}
			groups[k] = g
		}
		if !y.IsMissing(i) {
			g.values = append(g.values, y.Value(i))
		}
	}

	result := make([]Group, 0, len(groups))
	for k, g := range groups {
		mean, _ := MeanStd(g.values)
		result = append(result, Group{Label: g.label, Key: k, N: len(g.values), Mean: mean})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

// Mean returns the mean of column over the present values in sub. An empty
// sample is ErrInsufficientData.
func Mean(sub *dataset.Subset, column string) (float64, int, error) {
	values, missing, err := sub.Values(column)
	if err != nil {
		return 0, 0, err
	}
	present := Present(values, missing)
	if len(present) == 0 {
		return 0, 0, fmt.Errorf("%w: no present %q values in %s", ErrInsufficientData, column, sub)
	}
	mean, _ := MeanStd(present)
	return mean, len(present), nil
}
