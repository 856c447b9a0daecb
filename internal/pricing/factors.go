package pricing

import (
	"math"
	"time"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// ILF evaluates the increased-limits curve (x/base)^log_{1+z}(2)
func ILF(x, baseLimit, z float64) float64 {
	return math.Pow(x/baseLimit, math.Log(2)/math.Log1p(z))
}

// NetILF returns ILF(limit+excess) - ILF(excess). A zero-width layer falls
// back to ILF(excess).
func NetILF(limit, excess, baseLimit, z float64) float64 {
	top := ILF(limit+excess, baseLimit, z)
	bottom := ILF(excess, baseLimit, z)
	if top != bottom {
		return top - bottom
	}
	return bottom
}

// TermAdjustment scales premium for policy periods more than two days away
// from a year
func TermAdjustment(inception, expiry time.Time) float64 {
	days := int(math.Floor(expiry.Sub(inception).Hours() / 24))
	if abs(days-365) <= 2 {
		return 1
	}
	return float64(days+1) / 365
}

// BrokerageAdjustment grosses premium up for deductions. Deductions of
// exactly 100% map to 1.
func BrokerageAdjustment(brokerage, otherCommissions float64) (float64, error) {
	total := brokerage + otherCommissions
	if total == 1 {
		return 1, nil
	}
	if total > 1 || brokerage < 0 || otherCommissions < 0 {
		return 0, errors.Validationf("brokerage %v plus commissions %v must lie in [0,1]", brokerage, otherCommissions)
	}
	return 1 / (1 - total), nil
}

// Factor is one named multiplier of a rating
type Factor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Factors holds every multiplier assembled for one request
type Factors struct {
	ILF       float64 `json:"ilf"`
	Country   float64 `json:"country"`
	Industry  float64 `json:"industry"`
	Listing   float64 `json:"listing"`
	ADR       float64 `json:"adr"`
	Cover     float64 `json:"cover"`
	Retro     float64 `json:"retro"`
	Fixed     float64 `json:"fixed"`
	Brokerage float64 `json:"brokerage"`
	Profit    float64 `json:"profit"`
}

// Multiplier is the product of the rating factors applied to the base amount.
// Brokerage and profit are applied later in the waterfall.
func (f *Factors) Multiplier() float64 {
	return f.ILF * f.Country * f.Industry * f.Listing * f.ADR * f.Cover * f.Retro * f.Fixed
}

// Ordered lists the factors in presentation order
func (f *Factors) Ordered() []Factor {
	return []Factor{
		{"ILF", f.ILF},
		{"Country", f.Country},
		{"Industry", f.Industry},
		{"Listing", f.Listing},
		{"ADR", f.ADR},
		{"Cover", f.Cover},
		{"Retro", f.Retro},
		{"Fixed", f.Fixed},
		{"Brokerage", f.Brokerage},
		{"Profit", f.Profit},
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
