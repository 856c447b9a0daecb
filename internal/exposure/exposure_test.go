package exposure

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

func TestCalibration(t *testing.T) {
	cv, err := NewCurve(5.83)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(3.1-0.15*5.83*6.83), cv.B, 1e-12)
	assert.InDelta(t, math.Exp((0.78+0.12*5.83)*5.83), cv.G, 1e-9)
	assert.Less(t, cv.B, 1.0)
}

func TestCurveBoundaries(t *testing.T) {
	for _, c := range []float64{1.5, 2, 3, 4, 5, 5.83, 8} {
		cv, err := NewCurve(c)
		require.NoError(t, err, "c=%v", c)

		assert.InDelta(t, 0, cv.Eval(0), 1e-12)
		assert.InDelta(t, 1, cv.Eval(1), 1e-12)
		assert.InDelta(t, 0, cv.Eval(1e-12), 1e-9, "c=%v", c)
		assert.InDelta(t, 1, cv.Eval(1-1e-12), 1e-9, "c=%v", c)
		assert.Equal(t, 1.0, cv.Eval(3))

		prev := 0.0
		for i := 1; i <= 100; i++ {
			v := cv.Eval(float64(i) / 100)
			require.GreaterOrEqual(t, v, prev, "c=%v", c)
			prev = v
		}
	}
}

func TestCurveLowDispersionHasBAboveOne(t *testing.T) {
	cv, err := NewCurve(2)
	require.NoError(t, err)
	assert.Greater(t, cv.B, 1.0)
	assert.Greater(t, cv.G, 1.0)
	assert.InDelta(t, 1, cv.Eval(1), 1e-12)
}

func TestCurveRejectsInvalidDomain(t *testing.T) {
	// c=0 collapses to a total-loss curve with g=1
	_, err := NewCurve(0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
	_, err = NewCurve(math.NaN())
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
	_, err = NewCurve(-3)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}

func TestMeanDamageRatioMatchesSlope(t *testing.T) {
	cv, err := NewCurve(3)
	require.NoError(t, err)

	const h = 1e-7
	slope := cv.Eval(h) / h
	assert.InEpsilon(t, 1/cv.MeanDamageRatio(), slope, 1e-4)
}

func TestSeverityCDF(t *testing.T) {
	cv, err := NewCurve(4)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cv.SeverityCDF(0))
	assert.Equal(t, 1.0, cv.SeverityCDF(1))
	assert.InDelta(t, 1-1/cv.G, cv.SeverityCDF(1-1e-12), 1e-9)

	for _, x := range []float64{0.01, 0.1, 0.3, 0.7, 0.95} {
		assert.InDelta(t, x, cv.damageRatioAt(cv.SeverityCDF(x)), 1e-9)
	}
	assert.Equal(t, 1.0, cv.damageRatioAt(1-0.5/cv.G))
}

func TestSampleDamageRatioMean(t *testing.T) {
	cv, err := NewCurve(3)
	require.NoError(t, err)

	src := rand.New(rand.NewPCG(1, 2))
	const n = 200000
	var sum float64
	var totals int
	for i := 0; i < n; i++ {
		x := cv.SampleDamageRatio(src)
		require.True(t, x >= 0 && x <= 1)
		if x == 1 {
			totals++
		}
		sum += x
	}
	assert.InEpsilon(t, cv.MeanDamageRatio(), sum/n, 0.03)
	assert.InDelta(t, 1/cv.G, float64(totals)/n, 0.003)
}

func TestPoints(t *testing.T) {
	cv, err := NewCurve(5.83)
	require.NoError(t, err)

	pts, err := cv.Points(101)
	require.NoError(t, err)
	require.Len(t, pts, 101)
	assert.Equal(t, 0.0, pts[0].X)
	assert.Equal(t, 1.0, pts[100].X)
	assert.Equal(t, 1.0, pts[100].Exposure)

	_, err = cv.Points(1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRateHighLayerCedesLess(t *testing.T) {
	req := Request{
		C:              5.83,
		LossRatio:      0.484,
		Attachment:     20e6,
		Limit:          20e6,
		SubjectPremium: 100000,
		Bands:          []models.ExposureBand{{Lower: 0, Upper: 1e6, Premium: 100000}},
	}
	res, err := Rate(req)
	require.NoError(t, err)
	assert.Less(t, res.Claims, 100000*0.484)
	assert.GreaterOrEqual(t, res.Claims, 0.0)
	assert.Nil(t, res.Rows)
}

func TestRateWorkedLayer(t *testing.T) {
	cv, err := NewCurve(5.83)
	require.NoError(t, err)

	req := Request{
		C:              5.83,
		LossRatio:      0.5,
		Attachment:     100000,
		Limit:          200000,
		SubjectPremium: 300000,
		Bands: []models.ExposureBand{
			{Lower: 0, Upper: 1e6, Premium: 100000},
			{Lower: 1e6, Upper: 3e6, Premium: 200000},
		},
		IncludeRows: true,
	}
	res, err := Rate(req)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.InDelta(t, 0.2, first.D, 1e-12)
	assert.InDelta(t, 0.6, first.DPlusLimit, 1e-12)
	assert.InDelta(t, 50000*(cv.Eval(0.6)-cv.Eval(0.2)), first.LossCost, 1e-6)
	assert.InDelta(t, 1.0/3, first.PremiumShare, 1e-12)

	var claims, freq float64
	for _, r := range res.Rows {
		claims += r.LossCost
		freq += r.ExpectedClaims
		assert.Greater(t, r.ExpectedClaims, 0.0)
	}
	assert.InDelta(t, claims, res.Claims, 1e-6)
	assert.InDelta(t, freq, res.Frequency, 1e-9)
	assert.InDelta(t, cv.MeanDamageRatio(), res.MeanDamageRatio, 1e-12)
	assert.Less(t, res.Claims, 150000.0)
}

func TestRateGroundUpCedesEverything(t *testing.T) {
	res, err := Rate(Request{
		C:              4,
		LossRatio:      0.6,
		Attachment:     0,
		Limit:          1e9,
		SubjectPremium: 1000,
		Bands:          []models.ExposureBand{{Lower: 0, Upper: 1e6, Premium: 1000}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 600, res.Claims, 1e-9)
}

func TestRateValidation(t *testing.T) {
	_, err := Rate(Request{C: 5, LossRatio: 0.5, Limit: 1, SubjectPremium: 1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Rate(Request{
		C: 5, LossRatio: 0.5, Limit: 1, SubjectPremium: 1,
		Bands: []models.ExposureBand{{Lower: 0, Upper: 0, Premium: 1}},
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = Rate(Request{
		C: 0, LossRatio: 0.5, Limit: 1, SubjectPremium: 1,
		Bands: []models.ExposureBand{{Lower: 0, Upper: 10, Premium: 1}},
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeDomain))
}
