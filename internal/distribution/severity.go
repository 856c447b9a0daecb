package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Severity is a claim-size distribution. The set of implementations is closed.
type Severity interface {
	Family() Family
	Mean() float64
	StdDev() float64
	CDF(x float64) float64
	Rand(src rand.Source) float64
	isSeverity()
}

// LogNormal is a lognormal severity with log-scale location Mu and shape Sigma
type LogNormal struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// LogNormalParams matches a lognormal to the given mean and standard deviation
func LogNormalParams(mean, std float64) (LogNormal, error) {
	if !finite(mean) || !finite(std) || mean <= 0 || std < 0 {
		return LogNormal{}, errors.Domainf("lognormal requires mean > 0 and std >= 0, got mean=%v std=%v", mean, std)
	}
	sigma := math.Sqrt(math.Log1p(std * std / (mean * mean)))
	mu := math.Log(mean) - sigma*sigma/2
	return LogNormal{Mu: mu, Sigma: sigma}, nil
}

func (LogNormal) Family() Family { return FamilyLogNormal }
func (LogNormal) isSeverity()    {}

// Mean returns exp(mu + sigma^2/2)
func (d LogNormal) Mean() float64 {
	return math.Exp(d.Mu + d.Sigma*d.Sigma/2)
}

// StdDev returns the standard deviation of the distribution
func (d LogNormal) StdDev() float64 {
	s2 := d.Sigma * d.Sigma
	return math.Sqrt(math.Expm1(s2) * math.Exp(2*d.Mu+s2))
}

// CDF returns P(X <= x)
func (d LogNormal) CDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if d.Sigma == 0 {
		if math.Log(x) >= d.Mu {
			return 1
		}
		return 0
	}
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma}.CDF(x)
}

// Rand draws one value from src
func (d LogNormal) Rand(src rand.Source) float64 {
	if d.Sigma == 0 {
		return math.Exp(d.Mu)
	}
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: src}.Rand()
}

// Gamma is a gamma severity with the given shape and scale
type Gamma struct {
	Shape float64 `json:"shape"`
	Scale float64 `json:"scale"`
}

// GammaParams matches a gamma distribution to the given mean and standard deviation
func GammaParams(mean, std float64) (Gamma, error) {
	if !finite(mean) || !finite(std) || mean <= 0 || std <= 0 {
		return Gamma{}, errors.Domainf("gamma requires mean > 0 and std > 0, got mean=%v std=%v", mean, std)
	}
	return Gamma{
		Shape: (mean / std) * (mean / std),
		Scale: std * std / mean,
	}, nil
}

func (Gamma) Family() Family { return FamilyGamma }
func (Gamma) isSeverity()    {}

func (d Gamma) Mean() float64   { return d.Shape * d.Scale }
func (d Gamma) StdDev() float64 { return math.Sqrt(d.Shape) * d.Scale }

// CDF returns P(X <= x)
func (d Gamma) CDF(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return d.dist(nil).CDF(x)
}

// Rand draws one value from src
func (d Gamma) Rand(src rand.Source) float64 {
	return d.dist(src).Rand()
}

// distuv parametrizes gamma by rate
func (d Gamma) dist(src rand.Source) distuv.Gamma {
	return distuv.Gamma{Alpha: d.Shape, Beta: 1 / d.Scale, Src: src}
}

// NewSeverity builds a severity distribution of the given family by moment matching
func NewSeverity(family Family, mean, std float64) (Severity, error) {
	switch family {
	case FamilyLogNormal:
		d, err := LogNormalParams(mean, std)
		if err != nil {
			return nil, err
		}
		return d, nil
	case FamilyGamma:
		d, err := GammaParams(mean, std)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, errors.Validationf("%s is not a severity distribution", family)
}

// SampleSeverity draws n values, for charting a fitted marginal
func SampleSeverity(d Severity, n int, src rand.Source) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = d.Rand(src)
	}
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
