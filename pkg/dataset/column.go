package dataset

import (
	"fmt"
	"math"
	"sort"
)

// Kind is the storage kind of a Column.
type Kind uint8

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// A Column is a named, fixed-kind sequence of values with a mask for missing
// values. Categorical columns store the index into their sorted levels.
//
// Columns are never modified after construction and may be shared between
// datasets.
type Column struct {
	name    string
	kind    Kind
	values  []float64
	levels  []string
	missing []bool
}

// NewNumeric returns a numeric column. NaN values are treated as missing.
// missing may be nil. The values slice is copied.
func NewNumeric(name string, values []float64, missing []bool) *Column {
	c := &Column{
		name:    name,
		kind:    Numeric,
		values:  make([]float64, len(values)),
		missing: make([]bool, len(values)),
	}
	copy(c.values, values)
	for i, v := range values {
		if math.IsNaN(v) || (missing != nil && missing[i]) {
			c.missing[i] = true
			c.values[i] = math.NaN()
		}
	}
	return c
}

// NewCategorical returns a categorical column from raw labels. Empty labels
// and labels flagged in missing are treated as missing.
func NewCategorical(name string, labels []string, missing []bool) *Column {
	seen := make(map[string]struct{})
	for i, l := range labels {
		if l == "" || (missing != nil && missing[i]) {
			continue
		}
		seen[l] = struct{}{}
	}

	levels := make([]string, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	codes := make(map[string]float64, len(levels))
	for i, l := range levels {
		codes[l] = float64(i)
	}

	c := &Column{
		name:    name,
		kind:    Categorical,
		values:  make([]float64, len(labels)),
		levels:  levels,
		missing: make([]bool, len(labels)),
	}
	for i, l := range labels {
		if l == "" || (missing != nil && missing[i]) {
			c.missing[i] = true
			c.values[i] = math.NaN()
			continue
		}
		c.values[i] = codes[l]
	}
	return c
}

func (c *Column) Name() string { return c.name }

func (c *Column) Kind() Kind { return c.kind }

func (c *Column) Len() int { return len(c.values) }

// Levels returns the sorted distinct labels of a categorical column.
func (c *Column) Levels() []string {
	return append([]string(nil), c.levels...)
}

func (c *Column) IsMissing(i int) bool { return c.missing[i] }

// Value returns the numeric value, or the level index for categorical columns.
// Missing values are NaN.
func (c *Column) Value(i int) float64 { return c.values[i] }

// Label returns the label of row i of a categorical column, or the formatted
// number for a numeric column. Missing values have an empty label.
func (c *Column) Label(i int) string {
	if c.missing[i] {
		return ""
	}
	if c.kind == Categorical {
		return c.levels[int(c.values[i])]
	}
	return formatNumber(c.values[i])
}

// Missing returns the number of missing values.
func (c *Column) Missing() int {
	n := 0
	for _, m := range c.missing {
		if m {
			n++
		}
	}
	return n
}

// Float64s returns copies of the values and the missing mask.
func (c *Column) Float64s() ([]float64, []bool) {
	values := append([]float64(nil), c.values...)
	missing := append([]bool(nil), c.missing...)
	return values, missing
}

func (c *Column) take(rows []int) *Column {
	out := &Column{
		name:    c.name,
		kind:    c.kind,
		values:  make([]float64, len(rows)),
		levels:  c.levels,
		missing: make([]bool, len(rows)),
	}
	for j, i := range rows {
		out.values[j] = c.values[i]
		out.missing[j] = c.missing[i]
	}
	return out
}

func (c *Column) equal(o *Column) bool {
	if c.name != o.name || c.kind != o.kind || len(c.values) != len(o.values) {
		return false
	}
	if c.kind == Categorical {
		for i := range c.values {
			if c.Label(i) != o.Label(i) {
				return false
			}
		}
		return true
	}
	for i := range c.values {
		if c.missing[i] != o.missing[i] {
			return false
		}
		if !c.missing[i] && c.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%g", v)
}
