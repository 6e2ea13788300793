package regress

import (
	"fmt"
	"sort"

	"github.com/willbeason/progresa/pkg/dataset"
	"gonum.org/v1/gonum/mat"
)

// InterceptName is the name of the constant column of every design.
const InterceptName = "Intercept"

// A Design is the model matrix and outcome vector of a Spec over the complete
// rows of a subset.
type Design struct {
	Names []string
	X     *mat.Dense
	Y     *mat.VecDense

	// Rows are the source rows used, in source order.
	Rows []int
	// Dropped is the number of subset rows removed by listwise deletion.
	Dropped int
}

// expansion is a column of the dataset turned into one or more model columns
// over the kept rows.
type expansion struct {
	names  []string
	values [][]float64
}

// Build constructs the design of spec over sub. Rows with a missing value in
// the outcome or any referenced column are dropped.
func Build(sub *dataset.Subset, spec Spec) (*Design, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	src := sub.Source()
	columns := make(map[string]*dataset.Column)
	for _, name := range spec.columns() {
		c, err := src.Column(name)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", spec, err)
		}
		columns[name] = c
	}
	if columns[spec.Outcome].Kind() != dataset.Numeric {
		return nil, fmt.Errorf("model %q: %w: outcome %q is categorical",
			spec, dataset.ErrTypeMismatch, spec.Outcome)
	}

	all, err := sub.Rows()
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", spec, err)
	}
	rows := make([]int, 0, len(all))
	for _, i := range all {
		complete := true
		for _, c := range columns {
			if c.IsMissing(i) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}

	names := []string{InterceptName}
	intercept := make([]float64, len(rows))
	for i := range intercept {
		intercept[i] = 1
	}
	values := [][]float64{intercept}
	seen := map[string]struct{}{InterceptName: {}}
	add := func(e expansion) {
		for j, name := range e.names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
			values = append(values, e.values[j])
		}
	}

	for _, t := range spec.Terms {
		switch t.kind {
		case mainEffect:
			add(expand(columns[t.columns[0]], rows, false))
		case factor:
			add(expand(columns[t.columns[0]], rows, true))
		case interaction:
			add(interact(
				expand(columns[t.columns[0]], rows, false),
				expand(columns[t.columns[1]], rows, false),
			))
		}
	}

	y := columns[spec.Outcome]
	d := &Design{
		Names:   names,
		Rows:    rows,
		Dropped: len(all) - len(rows),
	}
	if len(rows) == 0 {
		// gonum has no empty matrices; Fit reports the lack of data.
		return d, nil
	}

	d.X = mat.NewDense(len(rows), len(names), nil)
	for j, col := range values {
		d.X.SetCol(j, col)
	}
	yv := make([]float64, len(rows))
	for k, i := range rows {
		yv[k] = y.Value(i)
	}
	d.Y = mat.NewVecDense(len(rows), yv)
	return d, nil
}

// expand turns a column into model columns. Numeric columns pass through
// unless asFactor is set. Otherwise every level present in rows but the first
// gets a 0/1 indicator named col[T.level].
func expand(c *dataset.Column, rows []int, asFactor bool) expansion {
	if c.Kind() == dataset.Numeric && !asFactor {
		v := make([]float64, len(rows))
		for k, i := range rows {
			v[k] = c.Value(i)
		}
		return expansion{names: []string{c.Name()}, values: [][]float64{v}}
	}

	labels := make(map[float64]string)
	for _, i := range rows {
		if _, ok := labels[c.Value(i)]; !ok {
			labels[c.Value(i)] = c.Label(i)
		}
	}
	keys := make([]float64, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	var e expansion
	for _, key := range keys[min(1, len(keys)):] {
		v := make([]float64, len(rows))
		for k, i := range rows {
			if c.Value(i) == key {
				v[k] = 1
			}
		}
		e.names = append(e.names, fmt.Sprintf("%s[T.%s]", c.Name(), labels[key]))
		e.values = append(e.values, v)
	}
	return e
}

// interact returns the pairwise products of the columns of a and b.
func interact(a, b expansion) expansion {
	var e expansion
	for i, an := range a.names {
		for j, bn := range b.names {
			v := make([]float64, len(a.values[i]))
			for k := range v {
				v[k] = a.values[i][k] * b.values[j][k]
			}
			e.names = append(e.names, an+":"+bn)
			e.values = append(e.values, v)
		}
	}
	return e
}
