package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Frequency is a claim-count distribution. The set of implementations is closed.
type Frequency interface {
	Family() Family
	Mean() float64
	StdDev() float64
	Prob(k int) float64
	CDF(k int) float64
	Rand(src rand.Source) int
	isFrequency()
}

// Poisson is a Poisson claim count with the given rate
type Poisson struct {
	Lambda float64 `json:"lambda"`
}

// PoissonParams returns a Poisson whose rate is the mean
func PoissonParams(mean float64) (Poisson, error) {
	if !finite(mean) || mean < 0 {
		return Poisson{}, errors.Domainf("poisson requires mean >= 0, got %v", mean)
	}
	return Poisson{Lambda: mean}, nil
}

func (Poisson) Family() Family { return FamilyPoisson }
func (Poisson) isFrequency()   {}

func (d Poisson) Mean() float64   { return d.Lambda }
func (d Poisson) StdDev() float64 { return math.Sqrt(d.Lambda) }

// Prob returns P(N = k)
func (d Poisson) Prob(k int) float64 {
	if k < 0 {
		return 0
	}
	if d.Lambda == 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(float64(k)*math.Log(d.Lambda) - d.Lambda - lfact(k))
}

// CDF returns P(N <= k)
func (d Poisson) CDF(k int) float64 {
	return cumulative(d.Prob, k)
}

// Rand draws one count from src
func (d Poisson) Rand(src rand.Source) int {
	if d.Lambda == 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: d.Lambda, Src: src}.Rand())
}

// NegativeBinomial counts failures before N successes with success probability P
type NegativeBinomial struct {
	N float64 `json:"n"`
	P float64 `json:"p"`
}

// NegativeBinomialParams matches a negative binomial to the given mean and
// standard deviation. The variance must exceed the mean.
func NegativeBinomialParams(mean, std float64) (NegativeBinomial, error) {
	if !finite(mean) || !finite(std) || mean <= 0 {
		return NegativeBinomial{}, errors.Domainf("negative binomial requires mean > 0, got %v", mean)
	}
	variance := std * std
	if variance <= mean {
		return NegativeBinomial{}, errors.Domainf("negative binomial requires variance > mean, got variance=%v mean=%v", variance, mean)
	}
	p := 1 / (variance / mean)
	return NegativeBinomial{N: mean * p / (1 - p), P: p}, nil
}

func (NegativeBinomial) Family() Family { return FamilyNegativeBinomial }
func (NegativeBinomial) isFrequency()   {}

func (d NegativeBinomial) Mean() float64 { return d.N * (1 - d.P) / d.P }

func (d NegativeBinomial) StdDev() float64 {
	return math.Sqrt(d.N * (1 - d.P) / (d.P * d.P))
}

// Prob returns P(N = k)
func (d NegativeBinomial) Prob(k int) float64 {
	if k < 0 {
		return 0
	}
	kf := float64(k)
	a, _ := math.Lgamma(kf + d.N)
	b, _ := math.Lgamma(d.N)
	return math.Exp(a - b - lfact(k) + d.N*math.Log(d.P) + kf*math.Log1p(-d.P))
}

// CDF returns P(N <= k)
func (d NegativeBinomial) CDF(k int) float64 {
	return cumulative(d.Prob, k)
}

// Rand draws one count from src as a gamma-mixed Poisson
func (d NegativeBinomial) Rand(src rand.Source) int {
	lambda := distuv.Gamma{Alpha: d.N, Beta: d.P / (1 - d.P), Src: src}.Rand()
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: src}.Rand())
}

// ZeroInflatedPoisson is a Poisson with an extra point mass at zero. With
// probability P the count is a structural zero; otherwise it is Poisson(Mu).
type ZeroInflatedPoisson struct {
	P  float64 `json:"p"`
	Mu float64 `json:"mu"`
}

// NewZeroInflatedPoisson builds a zero-inflated Poisson whose overall mean is
// mean, so the Poisson component has rate mean/(1-p).
func NewZeroInflatedPoisson(p, mean float64) (ZeroInflatedPoisson, error) {
	if !finite(p) || p < 0 || p >= 1 {
		return ZeroInflatedPoisson{}, errors.Domainf("zero-inflation probability must be in [0,1), got %v", p)
	}
	if !finite(mean) || mean < 0 {
		return ZeroInflatedPoisson{}, errors.Domainf("zero-inflated poisson requires mean >= 0, got %v", mean)
	}
	return ZeroInflatedPoisson{P: p, Mu: mean / (1 - p)}, nil
}

func (ZeroInflatedPoisson) Family() Family { return FamilyZeroInflatedPoisson }
func (ZeroInflatedPoisson) isFrequency()   {}

func (d ZeroInflatedPoisson) Mean() float64 { return (1 - d.P) * d.Mu }

// Variance returns (1-p)·mu·(1+p·mu)
func (d ZeroInflatedPoisson) Variance() float64 {
	return (1 - d.P) * d.Mu * (1 + d.P*d.Mu)
}

func (d ZeroInflatedPoisson) StdDev() float64 { return math.Sqrt(d.Variance()) }

// Prob returns P(N = k)
func (d ZeroInflatedPoisson) Prob(k int) float64 {
	if k < 0 {
		return 0
	}
	base := Poisson{Lambda: d.Mu}.Prob(k)
	if k == 0 {
		return d.P + (1-d.P)*base
	}
	return (1 - d.P) * base
}

// CDF returns P(N <= k)
func (d ZeroInflatedPoisson) CDF(k int) float64 {
	if k < 0 {
		return 0
	}
	return d.P + (1-d.P)*Poisson{Lambda: d.Mu}.CDF(k)
}

// Rand draws one count from src
func (d ZeroInflatedPoisson) Rand(src rand.Source) int {
	if uniform(src) < d.P {
		return 0
	}
	return Poisson{Lambda: d.Mu}.Rand(src)
}

// NewFrequency builds a frequency distribution of the given family. zeroProb
// is only read for the zero-inflated Poisson.
func NewFrequency(family Family, mean, std, zeroProb float64) (Frequency, error) {
	switch family {
	case FamilyPoisson:
		d, err := PoissonParams(mean)
		if err != nil {
			return nil, err
		}
		return d, nil
	case FamilyNegativeBinomial:
		d, err := NegativeBinomialParams(mean, std)
		if err != nil {
			return nil, err
		}
		return d, nil
	case FamilyZeroInflatedPoisson:
		d, err := NewZeroInflatedPoisson(zeroProb, mean)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, errors.Validationf("%s is not a frequency distribution", family)
}

// SampleFrequency draws n counts, for charting a fitted marginal
func SampleFrequency(d Frequency, n int, src rand.Source) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = d.Rand(src)
	}
	return out
}

func lfact(k int) float64 {
	v, _ := math.Lgamma(float64(k) + 1)
	return v
}

func cumulative(prob func(int) float64, k int) float64 {
	if k < 0 {
		return 0
	}
	var sum float64
	for i := 0; i <= k; i++ {
		sum += prob(i)
	}
	return math.Min(sum, 1)
}

func uniform(src rand.Source) float64 {
	if src == nil {
		return rand.Float64()
	}
	return rand.New(src).Float64()
}
