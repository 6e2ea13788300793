// Package did computes difference-in-differences estimates from the four
// group means, independently of the regression path.
package did

import (
	"fmt"
	"math"

	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/stats"
)

// Cells are the four groups of a two-period, two-group comparison.
type Cells struct {
	TreatedBefore *dataset.Subset
	TreatedAfter  *dataset.Subset
	ControlBefore *dataset.Subset
	ControlAfter  *dataset.Subset
}

// Cell indices into Result.Means.
const (
	TreatedBefore = iota
	TreatedAfter
	ControlBefore
	ControlAfter
)

var cellNames = [4]string{"treated before", "treated after", "control before", "control after"}

// A Mean is the outcome mean of one cell.
type Mean struct {
	Cell  string
	Value float64
	N     int
}

// A Result is the tabular difference-in-differences estimate with its
// intermediate means.
type Result struct {
	Outcome string
	Means   [4]Mean

	// DiffTreated is the after minus before change in the treated group.
	DiffTreated float64
	DiffControl float64
	Estimate    float64
}

// FromMeans computes the estimate from the four cell means.
func FromMeans(treatedBefore, treatedAfter, controlBefore, controlAfter float64) Result {
	dt := treatedAfter - treatedBefore
	dc := controlAfter - controlBefore
	return Result{
		Means: [4]Mean{
			{Cell: cellNames[TreatedBefore], Value: treatedBefore},
			{Cell: cellNames[TreatedAfter], Value: treatedAfter},
			{Cell: cellNames[ControlBefore], Value: controlBefore},
			{Cell: cellNames[ControlAfter], Value: controlAfter},
		},
		DiffTreated: dt,
		DiffControl: dc,
		Estimate:    dt - dc,
	}
}

// Estimate computes the mean of outcome over the present values of each cell
// and the difference of their changes. A cell without present values is
// stats.ErrInsufficientData.
func Estimate(cells Cells, outcome string) (Result, error) {
	subsets := [4]*dataset.Subset{cells.TreatedBefore, cells.TreatedAfter, cells.ControlBefore, cells.ControlAfter}

	var values [4]float64
	var counts [4]int
	for i, sub := range subsets {
		if sub == nil {
			return Result{}, fmt.Errorf("%s cell is not set", cellNames[i])
		}
		m, n, err := stats.Mean(sub, outcome)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", cellNames[i], err)
		}
		values[i], counts[i] = m, n
	}

	result := FromMeans(values[TreatedBefore], values[TreatedAfter], values[ControlBefore], values[ControlAfter])
	result.Outcome = outcome
	for i := range result.Means {
		result.Means[i].N = counts[i]
	}
	return result, nil
}

// CellsFor splits ds into the four cells by treatment and survey year. The
// filters apply to every cell.
func CellsFor(ds *dataset.Dataset, p dataset.Periods, filters ...dataset.Condition) Cells {
	base := ds.Where(filters...)
	return Cells{
		TreatedBefore: base.Where(dataset.Is(dataset.ColProgresa, dataset.Treated), dataset.Eq(dataset.ColYear, p.Base)),
		TreatedAfter:  base.Where(dataset.Is(dataset.ColProgresa, dataset.Treated), dataset.Eq(dataset.ColYear, p.Post)),
		ControlBefore: base.Where(dataset.Is(dataset.ColProgresa, dataset.Control), dataset.Eq(dataset.ColYear, p.Base)),
		ControlAfter:  base.Where(dataset.Is(dataset.ColProgresa, dataset.Control), dataset.Eq(dataset.ColYear, p.Post)),
	}
}

// Agrees reports whether a and b are equal within relative tolerance tol.
// Two zeros agree.
func Agrees(a, b, tol float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= tol*scale
}
