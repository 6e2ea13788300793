package regress

import (
	"fmt"
	"math"
	"strings"

	"github.com/willbeason/progresa/pkg/dataset"
	"github.com/willbeason/progresa/pkg/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var epsilon = math.Nextafter(1, 2) - 1

// Fit builds the design of spec over sub and fits it.
func Fit(sub *dataset.Subset, spec Spec) (*Model, error) {
	d, err := Build(sub, spec)
	if err != nil {
		return nil, err
	}

	m, err := d.Fit(spec.SE)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", spec, err)
	}
	m.Formula = spec.String()
	m.Outcome = spec.Outcome
	return m, nil
}

// Fit estimates the coefficients of d by least squares.
func (d *Design) Fit(se SEKind) (*Model, error) {
	n, k := len(d.Rows), len(d.Names)
	if n <= k {
		return nil, fmt.Errorf("%w: %d complete rows for %d coefficients", stats.ErrInsufficientData, n, k)
	}
	if se != Classical && se != Robust {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSE, se)
	}

	if err := d.checkRank(); err != nil {
		return nil, err
	}

	var qr mat.QR
	qr.Factorize(d.X)
	beta := mat.NewVecDense(k, nil)
	if err := qr.SolveVecTo(beta, false, d.Y); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDegenerateDesign, err)
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(d.X, beta)
	resid.SubVec(d.Y, &fitted)
	ssr := mat.Dot(&resid, &resid)
	dfResid := n - k

	var xtx mat.SymDense
	xtx.SymOuterK(1, d.X.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, fmt.Errorf("%w: X'X is not positive definite", ErrDegenerateDesign)
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDegenerateDesign, err)
	}

	cov := covariance(se, d.X, &resid, &inv, ssr, n, k)

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}
	crit := tDist.Quantile(1 - (1-ConfidenceLevel)/2)

	terms := make([]Coefficient, k)
	for j := range terms {
		b := beta.AtVec(j)
		s := math.Sqrt(cov.At(j, j))
		t := b / s
		terms[j] = Coefficient{
			Name:     d.Names[j],
			Estimate: b,
			StdErr:   s,
			T:        t,
			PValue:   2 * tDist.Survival(math.Abs(t)),
			CILow:    b - crit*s,
			CIHigh:   b + crit*s,
		}
	}

	y := d.Y.RawVector().Data
	mean := stat.Mean(y, nil)
	tss := 0.0
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	r2 := 1 - ssr/tss
	adj := 1 - (1-r2)*float64(n-1)/float64(dfResid)

	fStat, fp := waldF(beta, cov, dfResid)

	return &Model{
		Terms:   terms,
		N:       n,
		Dropped: d.Dropped,
		DFModel: k - 1,
		DFResid: dfResid,
		R2:      r2,
		AdjR2:   adj,
		FStat:   fStat,
		FPValue: fp,
		SE:      se,
	}, nil
}

// covariance returns the estimated covariance of the coefficients. inv is
// (X'X)^-1.
func covariance(se SEKind, x *mat.Dense, resid *mat.VecDense, inv *mat.SymDense, ssr float64, n, k int) *mat.Dense {
	cov := mat.NewDense(k, k, nil)
	if se == Classical {
		cov.Scale(ssr/float64(n-k), inv)
		return cov
	}

	// HC1: (X'X)^-1 X' diag(e^2) X (X'X)^-1 scaled by n/(n-k).
	var u mat.Dense
	u.CloneFrom(x)
	for i := 0; i < n; i++ {
		row := u.RawRowView(i)
		floats.Scale(resid.AtVec(i), row)
	}
	var meat mat.SymDense
	meat.SymOuterK(1, u.T())

	var tmp mat.Dense
	tmp.Mul(inv, &meat)
	cov.Mul(&tmp, inv)
	cov.Scale(float64(n)/float64(n-k), cov)
	return cov
}

// waldF tests that every coefficient but the first is zero. With the
// classical covariance it is the usual regression F statistic.
func waldF(beta *mat.VecDense, cov *mat.Dense, dfResid int) (float64, float64) {
	k := beta.Len()
	q := k - 1
	if q == 0 {
		return math.NaN(), math.NaN()
	}

	v := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		for j := i; j < q; j++ {
			v.SetSym(i, j, (cov.At(i+1, j+1)+cov.At(j+1, i+1))/2)
		}
	}
	b := mat.NewVecDense(q, nil)
	for i := 0; i < q; i++ {
		b.SetVec(i, beta.AtVec(i+1))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(v); !ok {
		return math.NaN(), math.NaN()
	}
	z := mat.NewVecDense(q, nil)
	if err := chol.SolveVecTo(z, b); err != nil {
		return math.NaN(), math.NaN()
	}

	f := mat.Dot(b, z) / float64(q)
	p := distuv.F{D1: float64(q), D2: float64(dfResid)}.Survival(f)
	return f, p
}

// checkRank fails with ErrDegenerateDesign unless X has full column rank.
// The message names the columns which are linear combinations of the ones
// before them.
func (d *Design) checkRank() error {
	n, k := d.X.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDNone); !ok {
		return fmt.Errorf("%w: singular value decomposition failed", ErrDegenerateDesign)
	}
	values := svd.Values(nil)
	tol := values[0] * float64(max(n, k)) * epsilon

	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	if rank == k {
		return nil
	}

	culprits := d.dependentColumns()
	if len(culprits) == 0 {
		return fmt.Errorf("%w: rank %d < %d columns", ErrDegenerateDesign, rank, k)
	}
	return fmt.Errorf("%w: rank %d < %d columns; %s collinear with earlier columns",
		ErrDegenerateDesign, rank, k, strings.Join(culprits, ", "))
}

// dependentColumns runs modified Gram-Schmidt over the columns of X and
// returns the names of those with no component orthogonal to their
// predecessors.
func (d *Design) dependentColumns() []string {
	n, k := d.X.Dims()
	var basis [][]float64
	var culprits []string
	for j := 0; j < k; j++ {
		v := mat.Col(nil, j, d.X)
		norm := floats.Norm(v, 2)
		for _, q := range basis {
			floats.AddScaled(v, -floats.Dot(q, v), q)
		}
		residual := floats.Norm(v, 2)
		if norm == 0 || residual <= norm*float64(n)*1e3*epsilon {
			culprits = append(culprits, d.Names[j])
			continue
		}
		floats.Scale(1/residual, v)
		basis = append(basis, v)
	}
	return culprits
}
