package distribution

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
}

func TestLogNormalParams(t *testing.T) {
	d, err := LogNormalParams(100, 30)
	require.NoError(t, err)

	wantSigma := math.Sqrt(math.Log(1 + 0.09))
	assert.InDelta(t, wantSigma, d.Sigma, 1e-12)
	assert.InDelta(t, math.Log(100)-wantSigma*wantSigma/2, d.Mu, 1e-12)
	assert.InDelta(t, 100, d.Mean(), 1e-9)
	assert.InDelta(t, 30, d.StdDev(), 1e-9)
}

func TestLogNormalRoundTrip(t *testing.T) {
	d, err := LogNormalParams(100, 30)
	require.NoError(t, err)

	draws := SampleSeverity(d, 100000, newSource(7))
	mean, std := stat.PopMeanStdDev(draws, nil)
	assert.InEpsilon(t, 100, mean, 0.02)
	assert.InEpsilon(t, 30, std, 0.02)
}

func TestLogNormalDegenerate(t *testing.T) {
	d, err := LogNormalParams(50, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Sigma)
	assert.InDelta(t, 50, d.Rand(newSource(1)), 1e-9)
	assert.Equal(t, 0.0, d.CDF(49))
	assert.Equal(t, 1.0, d.CDF(51))

	_, err = LogNormalParams(0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
	_, err = LogNormalParams(10, math.NaN())
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestGammaParams(t *testing.T) {
	d, err := GammaParams(10, 5)
	require.NoError(t, err)
	assert.InDelta(t, 4, d.Shape, 1e-12)
	assert.InDelta(t, 2.5, d.Scale, 1e-12)

	draws := SampleSeverity(d, 100000, newSource(11))
	mean, std := stat.PopMeanStdDev(draws, nil)
	assert.InEpsilon(t, 10, mean, 0.02)
	assert.InEpsilon(t, 5, std, 0.02)
	assert.InDelta(t, 0.5, d.CDF(d.Mean()), 0.1)

	_, err = GammaParams(10, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestNegativeBinomial(t *testing.T) {
	d, err := NegativeBinomialParams(10, 4.6)
	require.NoError(t, err)

	p := 10 / (4.6 * 4.6)
	assert.InDelta(t, p, d.P, 1e-12)
	assert.InDelta(t, 10*p/(1-p), d.N, 1e-12)
	assert.InDelta(t, 10, d.Mean(), 1e-9)
	assert.InDelta(t, 4.6, d.StdDev(), 1e-9)

	var total, first float64
	for k := 0; k <= 400; k++ {
		total += d.Prob(k)
		first += float64(k) * d.Prob(k)
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.InDelta(t, 10, first, 1e-6)
	assert.InDelta(t, total, d.CDF(400), 1e-9)

	counts := SampleFrequency(d, 50000, newSource(3))
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	assert.InEpsilon(t, 10, sum/float64(len(counts)), 0.03)
}

func TestNegativeBinomialUnderdispersed(t *testing.T) {
	_, err := NegativeBinomialParams(10, 3)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))

	// variance equal to the mean is the Poisson floor
	_, err = NegativeBinomialParams(4, 2)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestPoisson(t *testing.T) {
	d, err := PoissonParams(3)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-3), d.Prob(0), 1e-12)
	assert.InDelta(t, 4.5*math.Exp(-3), d.Prob(2), 1e-12)
	assert.InDelta(t, 1, d.CDF(60), 1e-12)

	zero := Poisson{}
	assert.Equal(t, 0, zero.Rand(newSource(1)))
	assert.Equal(t, 1.0, zero.Prob(0))

	_, err = PoissonParams(-1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestZeroInflatedPoisson(t *testing.T) {
	d, err := NewZeroInflatedPoisson(0.2, 8)
	require.NoError(t, err)
	assert.InDelta(t, 10, d.Mu, 1e-12)
	assert.InDelta(t, 8, d.Mean(), 1e-12)

	assert.InDelta(t, 0.2+0.8*math.Exp(-10), d.Prob(0), 1e-12)
	assert.InDelta(t, 0.8*10*math.Exp(-10), d.Prob(1), 1e-12)

	var total, m1, m2 float64
	for k := 0; k <= 200; k++ {
		pk := d.Prob(k)
		total += pk
		m1 += float64(k) * pk
		m2 += float64(k*k) * pk
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.InDelta(t, d.Variance(), m2-m1*m1, 1e-6)

	counts := SampleFrequency(d, 50000, newSource(5))
	var zeros int
	var sum float64
	for _, c := range counts {
		if c == 0 {
			zeros++
		}
		sum += float64(c)
	}
	assert.InDelta(t, d.Prob(0), float64(zeros)/float64(len(counts)), 0.01)
	assert.InEpsilon(t, 8, sum/float64(len(counts)), 0.03)

	_, err = NewZeroInflatedPoisson(1, 8)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestFactories(t *testing.T) {
	sev, err := NewSeverity(FamilyGamma, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, FamilyGamma, sev.Family())

	_, err = NewSeverity(FamilyPoisson, 10, 5)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	freq, err := NewFrequency(FamilyZeroInflatedPoisson, 4, 0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, FamilyZeroInflatedPoisson, freq.Family())
	assert.InDelta(t, 4, freq.Mean(), 1e-12)

	_, err = NewFrequency(FamilyLogNormal, 4, 1, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = NewFrequency(FamilyNegativeBinomial, 10, 1, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestParseFamily(t *testing.T) {
	cases := map[string]Family{
		"LogNormal":             FamilyLogNormal,
		"gamma":                 FamilyGamma,
		"Poisson":               FamilyPoisson,
		"NBinomial":             FamilyNegativeBinomial,
		"Zero-Inflated Poisson": FamilyZeroInflatedPoisson,
	}
	for name, want := range cases {
		got, err := ParseFamily(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := ParseFamily("Weibull")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	var payload struct {
		Severity  Family `json:"severity"`
		Frequency Family `json:"frequency"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"Gamma","frequency":"Zero-Inflated Poisson"}`), &payload))
	assert.Equal(t, FamilyGamma, payload.Severity)
	assert.True(t, payload.Frequency.IsFrequency())
	assert.False(t, payload.Frequency.IsSeverity())
}

func TestWeightedMean(t *testing.T) {
	assert.Equal(t, 0.0, WeightedMean(nil, nil))
	assert.Equal(t, 0.0, WeightedMean([]float64{1, 2}, []float64{0, 0}))
	assert.InDelta(t, 2.0, WeightedMean([]float64{1, 2, 3}, nil), 1e-12)
	assert.InDelta(t, 2.5, WeightedMean([]float64{1, 3}, []float64{1, 3}), 1e-12)
}
