package exposure

import (
	"math"
	"math/rand/v2"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Curve is a Bernegger (MBBEFD) exposure curve calibrated from a Swiss Re c
type Curve struct {
	C float64 `json:"c"`
	B float64 `json:"b"`
	G float64 `json:"g"`
}

// NewCurve calibrates b and g from the Swiss Re dispersion parameter c. The
// closed forms need b > 0, b != 1, g > 1 and bg != 1.
func NewCurve(c float64) (*Curve, error) {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return nil, errors.Domainf("swiss re c must be finite, got %v", c)
	}
	b := math.Exp(3.1 - 0.15*c*(1+c))
	g := math.Exp((0.78 + 0.12*c) * c)

	switch {
	case !(b > 0) || math.IsInf(b, 0):
		return nil, errors.Domainf("c=%v gives b=%v, want b > 0", c, b)
	case b == 1:
		return nil, errors.Domainf("c=%v gives b=1", c)
	case !(g > 1) || math.IsInf(g, 0):
		return nil, errors.Domainf("c=%v gives g=%v, want g > 1", c, g)
	case b*g == 1:
		return nil, errors.Domainf("c=%v gives bg=1", c)
	}
	return &Curve{C: c, B: b, G: g}, nil
}

// MeanDamageRatio returns the expected loss as a share of sum insured
func (cv *Curve) MeanDamageRatio() float64 {
	b, g := cv.B, cv.G
	return math.Log(b*g) * (1 - b) / (math.Log(b) * (1 - b*g))
}

// Eval returns G(x), the share of expected loss retained below a deductible
// of x times the sum insured. G(0) = 0 and G(x) = 1 for x >= 1.
func (cv *Curve) Eval(x float64) float64 {
	if x >= 1 {
		return 1
	}
	if x <= 0 {
		return 0
	}
	b, g := cv.B, cv.G
	return math.Log(((g-1)*b+(1-b*g)*math.Pow(b, x))/(1-b)) / math.Log(b*g)
}

// SeverityCDF returns the probability the damage ratio does not exceed x.
// Total losses carry probability 1/g.
func (cv *Curve) SeverityCDF(x float64) float64 {
	if x >= 1 {
		return 1
	}
	if x <= 0 {
		return 0
	}
	b, g := cv.B, cv.G
	bx := math.Pow(b, x)
	return b * (g - 1) * (1 - bx) / (b*(g-1) + (1-b*g)*bx)
}

// SampleDamageRatio draws a damage ratio by inverting SeverityCDF
func (cv *Curve) SampleDamageRatio(src rand.Source) float64 {
	var u float64
	if src == nil {
		u = rand.Float64()
	} else {
		u = rand.New(src).Float64()
	}
	return cv.damageRatioAt(u)
}

func (cv *Curve) damageRatioAt(u float64) float64 {
	if u >= 1-1/cv.G {
		return 1
	}
	if u <= 0 {
		return 0
	}
	a := cv.B * (cv.G - 1)
	bb := 1 - cv.B*cv.G
	t := a * (1 - u) / (a + u*bb)
	return math.Log(t) / math.Log(cv.B)
}

// Points samples both curves on n evenly spaced damage ratios in [0,1]
func (cv *Curve) Points(n int) ([]models.CurvePoint, error) {
	if n < 2 {
		return nil, errors.Validationf("curve needs at least 2 points, got %d", n)
	}
	out := make([]models.CurvePoint, n)
	for i := range out {
		x := float64(i) / float64(n-1)
		out[i] = models.CurvePoint{X: x, Exposure: cv.Eval(x), Severity: cv.SeverityCDF(x)}
	}
	return out, nil
}
