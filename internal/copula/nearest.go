package copula

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

const (
	nearestMaxIter   = 200
	nearestTolerance = 1e-10
	// smallest eigenvalue kept after projection so the result factorizes
	eigenFloor = 1e-8
	symTol     = 1e-8
)

// CorrelationFromRows validates a square, symmetric matrix with unit diagonal
// and entries in [-1,1]
func CorrelationFromRows(rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, errors.Validation("correlation matrix is empty")
	}
	sym := mat.NewSymDense(n, nil)
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Validationf("correlation matrix row %d has %d entries, want %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || v < -1 || v > 1 {
				return nil, errors.Validationf("correlation[%d][%d]=%v outside [-1,1]", i, j, v)
			}
			if i == j && math.Abs(v-1) > symTol {
				return nil, errors.Validationf("correlation diagonal [%d][%d]=%v, want 1", i, j, v)
			}
			if math.Abs(v-rows[j][i]) > symTol {
				return nil, errors.Validationf("correlation matrix is not symmetric at [%d][%d]", i, j)
			}
			if j >= i {
				sym.SetSym(i, j, v)
			}
		}
	}
	return sym, nil
}

// NearestCorrelation projects a symmetric matrix onto the nearest correlation
// matrix using Higham's alternating projections with Dykstra's correction.
// The result is positive definite with a unit diagonal.
func NearestCorrelation(a mat.Symmetric) (*mat.SymDense, error) {
	n := a.SymmetricDim()
	y := mat.NewSymDense(n, nil)
	y.CopySym(a)
	ds := mat.NewSymDense(n, nil)
	r := mat.NewSymDense(n, nil)
	prev := mat.NewSymDense(n, nil)

	for iter := 0; iter < nearestMaxIter; iter++ {
		prev.CopySym(y)

		subSym(r, y, ds)
		x, err := clipEigen(r, 0)
		if err != nil {
			return nil, err
		}
		subSym(ds, x, r)

		y.CopySym(x)
		for i := 0; i < n; i++ {
			y.SetSym(i, i, 1)
		}

		subSym(prev, y, prev)
		if mat.Norm(prev, 2) <= nearestTolerance*math.Max(1, mat.Norm(y, 2)) {
			break
		}
	}

	// Lift eigenvalues off zero and restore the unit diagonal
	x, err := clipEigen(y, eigenFloor)
	if err != nil {
		return nil, err
	}
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := x.At(i, j) / math.Sqrt(x.At(i, i)*x.At(j, j))
			if i == j {
				v = 1
			}
			out.SetSym(i, j, v)
		}
	}
	return out, nil
}

// subSym sets dst = a - b
func subSym(dst *mat.SymDense, a, b mat.Symmetric) {
	n := a.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, a.At(i, j)-b.At(i, j))
		}
	}
}

// clipEigen rebuilds a with every eigenvalue raised to at least floor
func clipEigen(a mat.Symmetric, floor float64) (*mat.SymDense, error) {
	n := a.SymmetricDim()
	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, errors.Numerical("eigen decomposition of correlation matrix failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	for i := range values {
		if values[i] < floor {
			values[i] = floor
		}
	}

	// v * diag(values) * v^T
	scaled := mat.NewDense(n, n, nil)
	scaled.Apply(func(_, j int, v float64) float64 {
		return v * values[j]
	}, &vectors)
	var full mat.Dense
	full.Mul(scaled, vectors.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2)
		}
	}
	return out, nil
}

// cholesky returns the lower factor of the nearest correlation matrix to a
func cholesky(a mat.Symmetric) (*mat.TriDense, error) {
	psd, err := NearestCorrelation(a)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(psd); !ok {
		return nil, errors.Numerical("cholesky decomposition failed after projection")
	}
	var l mat.TriDense
	chol.LTo(&l)
	return &l, nil
}
