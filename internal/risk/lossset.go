package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// DefaultSVaRWindow is the return-period half width used for spread VaR
const DefaultSVaRWindow = 25.0

// StandardReturnPeriods are the rows of the exceedance table
var StandardReturnPeriods = []float64{2, 5, 10, 20, 25, 50, 100, 200, 250, 500, 1000}

// LossSet is an exceedance curve: simulated annual losses sorted descending,
// so index i approximates the 1-in-(n/i) loss. It is read-only.
type LossSet struct {
	values []float64
}

// NewLossSet sorts a copy of values into a loss set
func NewLossSet(values []float64) *LossSet {
	sorted := append([]float64(nil), values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return &LossSet{values: sorted}
}

// Len returns the number of trials
func (l *LossSet) Len() int {
	return len(l.values)
}

// Values returns a copy of the sorted losses
func (l *LossSet) Values() []float64 {
	return append([]float64(nil), l.values...)
}

// Mean returns the average annual loss
func (l *LossSet) Mean() float64 {
	if len(l.values) == 0 {
		return 0
	}
	return stat.Mean(l.values, nil)
}

// StdDev returns the population standard deviation
func (l *LossSet) StdDev() float64 {
	if len(l.values) == 0 {
		return 0
	}
	_, std := stat.PopMeanStdDev(l.values, nil)
	return std
}

// CoV returns the coefficient of variation, or 0 when the mean is 0
func (l *LossSet) CoV() float64 {
	mean := l.Mean()
	if mean == 0 {
		return 0
	}
	return l.StdDev() / mean
}

// index returns the position of the 1-in-rp loss
func (l *LossSet) index(rp float64) (int, error) {
	if len(l.values) == 0 {
		return 0, errors.Validation("loss set is empty")
	}
	if math.IsNaN(rp) || rp < 1 {
		return 0, errors.Validationf("return period must be >= 1, got %v", rp)
	}
	idx := int(float64(len(l.values)) / rp)
	return min(idx, len(l.values)-1), nil
}

// VaR returns the single loss at index int(n/rp) of the descending curve.
// It is not averaged over neighbouring values; SVaR gives the smoothed figure.
func (l *LossSet) VaR(rp float64) (float64, error) {
	idx, err := l.index(rp)
	if err != nil {
		return 0, err
	}
	return l.values[idx], nil
}

// TVaR returns the mean of every loss at or beyond the 1-in-rp position
func (l *LossSet) TVaR(rp float64) (float64, error) {
	idx, err := l.index(rp)
	if err != nil {
		return 0, err
	}
	return stat.Mean(l.values[:idx+1], nil), nil
}

// SVaR returns the mean loss between return periods rp+window and rp-window.
// When rp-window is not positive the window runs to the end of the curve.
func (l *LossSet) SVaR(rp, window float64) (float64, error) {
	if _, err := l.index(rp); err != nil {
		return 0, err
	}
	if window < 0 {
		return 0, errors.Validationf("spread window must be >= 0, got %v", window)
	}

	n := len(l.values)
	lo := int(float64(n) / (rp + window))
	hi := n
	if rp-window > 0 {
		hi = min(int(float64(n)/(rp-window)), n)
	}
	lo = min(lo, n-1)
	if hi <= lo {
		hi = lo + 1
	}
	return stat.Mean(l.values[lo:hi], nil), nil
}

// ConfidenceInterval returns a Student-t interval for the mean at the given
// level, using the sample standard error
func (l *LossSet) ConfidenceInterval(level float64) (lower, upper float64, err error) {
	if !(level > 0 && level < 1) {
		return 0, 0, errors.Validationf("confidence level must be in (0,1), got %v", level)
	}
	n := len(l.values)
	if n == 0 {
		return 0, 0, errors.Validation("loss set is empty")
	}
	mean := l.Mean()
	if n < 2 {
		return mean, mean, nil
	}

	sem := stat.StdDev(l.values, nil) / math.Sqrt(float64(n))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile((1 + level) / 2)
	return mean - t*sem, mean + t*sem, nil
}

// ReturnPeriodTable returns the loss at each standard return period
func (l *LossSet) ReturnPeriodTable() []models.ReturnPeriodRow {
	if len(l.values) == 0 {
		return nil
	}
	rows := make([]models.ReturnPeriodRow, 0, len(StandardReturnPeriods))
	for _, rp := range StandardReturnPeriods {
		loss, _ := l.VaR(rp)
		rows = append(rows, models.ReturnPeriodRow{
			ReturnPeriod: rp,
			Percentile:   1 - 1/rp,
			Loss:         loss,
		})
	}
	return rows
}

// Summary collects the headline statistics at one return period
func (l *LossSet) Summary(rp, window, ciLevel float64) (*models.LossSummary, error) {
	varLoss, err := l.VaR(rp)
	if err != nil {
		return nil, err
	}
	tvar, err := l.TVaR(rp)
	if err != nil {
		return nil, err
	}
	svar, err := l.SVaR(rp, window)
	if err != nil {
		return nil, err
	}
	lower, upper, err := l.ConfidenceInterval(ciLevel)
	if err != nil {
		return nil, err
	}

	return &models.LossSummary{
		Trials:       l.Len(),
		Mean:         l.Mean(),
		StdDev:       l.StdDev(),
		CoV:          l.CoV(),
		CILower:      lower,
		CIUpper:      upper,
		CILevel:      ciLevel,
		ReturnPeriod: rp,
		VaR:          varLoss,
		TVaR:         tvar,
		SVaR:         svar,
		Table:        l.ReturnPeriodTable(),
	}, nil
}
