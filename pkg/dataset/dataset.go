package dataset

import (
	"fmt"
)

// A Dataset is an immutable, column-oriented table of child-year
// observations. Transformations return a new Dataset which shares the
// columns it did not change.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int

	recoded Recoding
	periods Periods
}

// New assembles a Dataset. All columns must have the same length and distinct
// names.
func New(columns ...*Column) (*Dataset, error) {
	ds := &Dataset{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if i == 0 {
			ds.rows = c.Len()
		} else if c.Len() != ds.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrSchema, c.Name(), c.Len(), ds.rows)
		}
		if _, dup := ds.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c.Name())
		}
		ds.index[c.Name()] = i
	}
	return ds, nil
}

// Rows returns the number of observations.
func (ds *Dataset) Rows() int { return ds.rows }

// Names returns the column names in storage order.
func (ds *Dataset) Names() []string {
	names := make([]string, len(ds.columns))
	for i, c := range ds.columns {
		names[i] = c.Name()
	}
	return names
}

func (ds *Dataset) Has(name string) bool {
	_, ok := ds.index[name]
	return ok
}

// Column returns the named column or ErrColumnNotFound.
func (ds *Dataset) Column(name string) (*Column, error) {
	i, ok := ds.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return ds.columns[i], nil
}

// Numeric returns the named column, failing unless it is numeric.
func (ds *Dataset) Numeric(name string) (*Column, error) {
	c, err := ds.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind() != Numeric {
		return nil, fmt.Errorf("%w: column %q is %s, want numeric", ErrTypeMismatch, name, c.Kind())
	}
	return c, nil
}

// Recoded reports which recodings have been applied.
func (ds *Dataset) Recoded() Recoding { return ds.recoded }

// Require fails with ErrNotRecoded unless every recoding in r has been applied.
func (ds *Dataset) Require(r Recoding) error {
	if missing := r &^ ds.recoded; missing != 0 {
		return fmt.Errorf("%w: %s", ErrNotRecoded, missing)
	}
	return nil
}

// Where returns a lazy view of the rows matching every condition.
func (ds *Dataset) Where(conds ...Condition) *Subset {
	return &Subset{source: ds, pred: append(Predicate(nil), conds...)}
}

// All returns a view over every row.
func (ds *Dataset) All() *Subset {
	return ds.Where()
}

// Take returns a new Dataset holding the given rows, in the given order.
func (ds *Dataset) Take(rows []int) *Dataset {
	columns := make([]*Column, len(ds.columns))
	for j, c := range ds.columns {
		columns[j] = c.take(rows)
	}
	out := ds.derive(columns)
	out.rows = len(rows)
	return out
}

// Equal reports whether two datasets hold the same columns, values and
// recoding state. Values at missing positions are ignored.
func (ds *Dataset) Equal(o *Dataset) bool {
	if ds.rows != o.rows || len(ds.columns) != len(o.columns) {
		return false
	}
	if ds.recoded != o.recoded || ds.periods != o.periods {
		return false
	}
	for i, c := range ds.columns {
		if !c.equal(o.columns[i]) {
			return false
		}
	}
	return true
}

// withColumn returns a copy of ds in which c replaces the column of the same
// name, or is appended if there is none.
func (ds *Dataset) withColumn(c *Column) *Dataset {
	columns := append([]*Column(nil), ds.columns...)
	if i, ok := ds.index[c.Name()]; ok {
		columns[i] = c
	} else {
		columns = append(columns, c)
	}
	return ds.derive(columns)
}

func (ds *Dataset) derive(columns []*Column) *Dataset {
	out := &Dataset{
		columns: columns,
		index:   make(map[string]int, len(columns)),
		rows:    ds.rows,
		recoded: ds.recoded,
		periods: ds.periods,
	}
	for i, c := range columns {
		out.index[c.Name()] = i
	}
	return out
}
