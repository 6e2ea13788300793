package dataset

import (
	"fmt"
	"strings"
)

type op uint8

const (
	opEq op = iota
	opBetween
	opIn
	opIs
	opPresent
)

// A Condition restricts the rows of a Dataset by the value of one column.
// Rows whose value is missing never satisfy a condition other than Present.
type Condition struct {
	Column string

	op       op
	lo, hi   float64
	set      []float64
	category Category
}

// Eq matches rows whose numeric value equals x.
func Eq(column string, x float64) Condition {
	return Condition{Column: column, op: opEq, lo: x, hi: x}
}

// Between matches rows whose numeric value lies in [lo, hi].
func Between(column string, lo, hi float64) Condition {
	return Condition{Column: column, op: opBetween, lo: lo, hi: hi}
}

// In matches rows whose numeric value is one of xs.
func In(column string, xs ...float64) Condition {
	return Condition{Column: column, op: opIn, set: append([]float64(nil), xs...)}
}

// Is matches rows belonging to a category. Before recoding the column holds
// raw labels and the label is compared; afterwards the 0/1 code is.
func Is(column string, category Category) Condition {
	return Condition{Column: column, op: opIs, category: category}
}

// Present matches rows where the column is not missing.
func Present(column string) Condition {
	return Condition{Column: column, op: opPresent}
}

func (c Condition) String() string {
	switch c.op {
	case opEq:
		return fmt.Sprintf("%s == %g", c.Column, c.lo)
	case opBetween:
		return fmt.Sprintf("%g <= %s <= %g", c.lo, c.Column, c.hi)
	case opIn:
		vals := make([]string, len(c.set))
		for i, v := range c.set {
			vals[i] = formatNumber(v)
		}
		return fmt.Sprintf("%s in {%s}", c.Column, strings.Join(vals, ", "))
	case opIs:
		return fmt.Sprintf("%s is %s", c.Column, c.category)
	case opPresent:
		return fmt.Sprintf("%s present", c.Column)
	default:
		return fmt.Sprintf("%s ?", c.Column)
	}
}

// compile resolves the condition against ds and returns a row matcher.
func (c Condition) compile(ds *Dataset) (func(i int) bool, error) {
	col, err := ds.Column(c.Column)
	if err != nil {
		return nil, err
	}

	if c.op == opPresent {
		return func(i int) bool { return !col.IsMissing(i) }, nil
	}

	if c.op == opIs {
		return c.compileCategory(col)
	}

	if col.Kind() != Numeric {
		return nil, fmt.Errorf("%w: condition %q needs a numeric column, %q is %s",
			ErrTypeMismatch, c, c.Column, col.Kind())
	}

	switch c.op {
	case opEq, opBetween:
		return func(i int) bool {
			v := col.Value(i)
			return !col.IsMissing(i) && v >= c.lo && v <= c.hi
		}, nil
	case opIn:
		set := make(map[float64]struct{}, len(c.set))
		for _, v := range c.set {
			set[v] = struct{}{}
		}
		return func(i int) bool {
			if col.IsMissing(i) {
				return false
			}
			_, ok := set[col.Value(i)]
			return ok
		}, nil
	default:
		return nil, fmt.Errorf("unknown condition operator %d", c.op)
	}
}

func (c Condition) compileCategory(col *Column) (func(i int) bool, error) {
	if c.category == nil {
		return nil, fmt.Errorf("%w: condition on %q has no category", ErrTypeMismatch, c.Column)
	}

	if col.Kind() == Numeric {
		for i := 0; i < col.Len(); i++ {
			if v := col.Value(i); !col.IsMissing(i) && v != 0 && v != 1 {
				return nil, fmt.Errorf("%w: condition %q: row %d has code %g, want 0 or 1", ErrTypeMismatch, c, i, v)
			}
		}
		code := c.category.Code()
		return func(i int) bool {
			return !col.IsMissing(i) && col.Value(i) == code
		}, nil
	}

	// Every level must belong to the category's domain, otherwise a typo in
	// the data would silently select nothing.
	match := make([]bool, len(col.levels))
	for j, level := range col.levels {
		parsed, err := c.category.parse(level)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", c, err)
		}
		match[j] = parsed.Code() == c.category.Code()
	}
	return func(i int) bool {
		return !col.IsMissing(i) && match[int(col.Value(i))]
	}, nil
}

// A Predicate is a conjunction of conditions.
type Predicate []Condition

func (p Predicate) String() string {
	if len(p) == 0 {
		return "all rows"
	}
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

// A Subset is a read-only, lazily evaluated view of a Dataset. It holds no
// data of its own.
type Subset struct {
	source *Dataset
	pred   Predicate
}

// Where narrows the subset with further conditions.
func (s *Subset) Where(conds ...Condition) *Subset {
	pred := make(Predicate, 0, len(s.pred)+len(conds))
	pred = append(pred, s.pred...)
	pred = append(pred, conds...)
	return &Subset{source: s.source, pred: pred}
}

func (s *Subset) Source() *Dataset { return s.source }

func (s *Subset) Predicate() Predicate { return append(Predicate(nil), s.pred...) }

func (s *Subset) String() string { return s.pred.String() }

// Rows returns the indices of matching source rows in source order. An empty
// result is not an error.
func (s *Subset) Rows() ([]int, error) {
	matchers := make([]func(int) bool, len(s.pred))
	for j, c := range s.pred {
		m, err := c.compile(s.source)
		if err != nil {
			return nil, err
		}
		matchers[j] = m
	}

	rows := make([]int, 0, s.source.Rows())
	for i := 0; i < s.source.Rows(); i++ {
		ok := true
		for _, m := range matchers {
			if !m(i) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// Values returns the values and missing mask of a numeric column over the
// matching rows.
func (s *Subset) Values(column string) ([]float64, []bool, error) {
	col, err := s.source.Numeric(column)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.Rows()
	if err != nil {
		return nil, nil, err
	}

	values := make([]float64, len(rows))
	missing := make([]bool, len(rows))
	for j, i := range rows {
		values[j] = col.Value(i)
		missing[j] = col.IsMissing(i)
	}
	return values, missing, nil
}

// Materialize copies the matching rows into a new Dataset.
func (s *Subset) Materialize() (*Dataset, error) {
	rows, err := s.Rows()
	if err != nil {
		return nil, fmt.Errorf("subset %q: %w", s, err)
	}
	return s.source.Take(rows), nil
}
