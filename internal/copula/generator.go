package copula

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Kind selects a copula family
type Kind int

const (
	KindGaussian Kind = iota
	KindStudentT
	KindClayton
)

// String returns the name of the copula family
func (k Kind) String() string {
	switch k {
	case KindGaussian:
		return "gaussian"
	case KindStudentT:
		return "student_t"
	case KindClayton:
		return "clayton"
	}
	return "unknown"
}

// ParseKind resolves a copula family from its name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gaussian", "normal":
		return KindGaussian, nil
	case "student_t", "studentt", "t":
		return KindStudentT, nil
	case "clayton":
		return KindClayton, nil
	}
	return 0, errors.Validationf("unknown copula %q", s)
}

// streamSalt separates generator streams from other PCG users seeded with the same value
const streamSalt = 0xda3e39cb94b95bdb

// Generator draws copula samples from a seeded stream. It is not safe for
// concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator whose output is fully determined by seed
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, streamSalt))}
}

// NewGeneratorFrom wraps an existing random source
func NewGeneratorFrom(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Gaussian samples a Gaussian copula with the given correlation
func (g *Generator) Gaussian(corr mat.Symmetric, nSims int) (*Sample, error) {
	x, err := g.correlatedNormals(corr, nSims)
	if err != nil {
		return nil, err
	}

	out := newSample(x.RawMatrix().Rows, nSims)
	for i := 0; i < out.Variables; i++ {
		row := out.Row(i)
		for j := range row {
			row[j] = distuv.UnitNormal.CDF(x.At(i, j))
		}
	}
	return out, nil
}

// StudentT samples a Student-t copula. One chi-squared draw per simulation is
// shared by every variable.
func (g *Generator) StudentT(corr mat.Symmetric, df float64, nSims int) (*Sample, error) {
	if !(df > 0) || math.IsInf(df, 0) {
		return nil, errors.Domainf("student-t degrees of freedom must be positive, got %v", df)
	}
	x, err := g.correlatedNormals(corr, nSims)
	if err != nil {
		return nil, err
	}

	chi := distuv.ChiSquared{K: df, Src: g.rng}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	nVar := x.RawMatrix().Rows
	out := newSample(nVar, nSims)
	for j := 0; j < nSims; j++ {
		s := chi.Rand()
		scale := math.Sqrt(df / s)
		for i := 0; i < nVar; i++ {
			out.data[i*nSims+j] = t.CDF(x.At(i, j) * scale)
		}
	}
	return out, nil
}

// Clayton samples an nVar-dimensional Clayton copula by inverting the
// conditional distributions one variable at a time. The result is reflected
// (1-u) so the dependence sits in the upper tail.
func (g *Generator) Clayton(nVar, nSims int, alpha float64) (*Sample, error) {
	if !(alpha > 0) || math.IsInf(alpha, 0) {
		return nil, errors.Domainf("clayton alpha must be positive, got %v", alpha)
	}
	if err := checkDims(nVar, nSims); err != nil {
		return nil, err
	}

	out := newSample(nVar, nSims)
	v := make([][]float64, nVar)
	for i := range v {
		v[i] = make([]float64, nSims)
		for j := range v[i] {
			v[i][j] = g.openUnit()
		}
	}

	for j := 0; j < nSims; j++ {
		u := v[0][j]
		out.data[j] = u
		sum := math.Pow(u, -alpha)
		for k := 2; k <= nVar; k++ {
			w := v[k-1][j]
			expo := -alpha / (alpha*float64(k-1) + 1)
			c := (sum-float64(k)+2)*(math.Pow(w, expo)-1) + 1
			u = math.Pow(c, -1/alpha)
			out.data[(k-1)*nSims+j] = u
			sum += math.Pow(u, -alpha)
		}
	}

	for i, u := range out.data {
		if math.IsNaN(u) || u < 0 || u > 1 {
			return nil, errors.Domainf("clayton alpha %v is numerically unstable", alpha)
		}
		out.data[i] = 1 - u
	}
	return out, nil
}

// correlatedNormals returns L·Z where L is the Cholesky factor of the nearest
// correlation matrix and Z is nVar×nSims standard normal
func (g *Generator) correlatedNormals(corr mat.Symmetric, nSims int) (*mat.Dense, error) {
	nVar := corr.SymmetricDim()
	if err := checkDims(nVar, nSims); err != nil {
		return nil, err
	}
	l, err := cholesky(corr)
	if err != nil {
		return nil, err
	}

	z := mat.NewDense(nVar, nSims, nil)
	for i := 0; i < nVar; i++ {
		for j := 0; j < nSims; j++ {
			z.Set(i, j, g.rng.NormFloat64())
		}
	}
	var x mat.Dense
	x.Mul(l, z)
	return &x, nil
}

// openUnit draws from (0,1)
func (g *Generator) openUnit() float64 {
	for {
		if u := g.rng.Float64(); u > 0 {
			return u
		}
	}
}

func checkDims(nVar, nSims int) error {
	if nVar < 1 {
		return errors.Validationf("copula needs at least one variable, got %d", nVar)
	}
	if nSims < 1 {
		return errors.Validationf("copula needs at least one simulation, got %d", nSims)
	}
	return nil
}
