package models

import (
	"math"
	"time"
)

// Layer describes the portion of each loss ceded to a contract. AAL <= 0
// means the aggregate is not capped.
type Layer struct {
	Attachment float64 `json:"attachment" validate:"gte=0"`
	Limit      float64 `json:"limit" validate:"gt=0"`
	AAD        float64 `json:"aad" validate:"gte=0"`
	AAL        float64 `json:"aal" validate:"gte=0"`
}

// UnlimitedLayer returns a layer that passes every loss through untouched
func UnlimitedLayer() Layer {
	return Layer{Limit: math.Inf(1)}
}

// ApplyClaim returns the part of a single claim that falls inside the layer
func (l Layer) ApplyClaim(claim float64) float64 {
	return math.Min(math.Max(claim-l.Attachment, 0), l.Limit)
}

// ApplyAggregate applies the annual aggregate deductible and limit to a trial total
func (l Layer) ApplyAggregate(total float64) float64 {
	total = math.Max(total-l.AAD, 0)
	if l.AAL > 0 {
		total = math.Min(total, l.AAL)
	}
	return total
}

// ReturnPeriodRow is one row of an exceedance table
type ReturnPeriodRow struct {
	ReturnPeriod float64 `json:"return_period"`
	Percentile   float64 `json:"percentile"`
	Loss         float64 `json:"loss"`
}

// LossSummary is the presentation view of a simulated loss set
type LossSummary struct {
	RunID        string            `json:"run_id"`
	Trials       int               `json:"trials"`
	Layered      bool              `json:"layered"`
	Mean         float64           `json:"mean"`
	StdDev       float64           `json:"std_dev"`
	CoV          float64           `json:"cov"`
	CILower      float64           `json:"ci_lower"`
	CIUpper      float64           `json:"ci_upper"`
	CILevel      float64           `json:"ci_level"`
	ReturnPeriod float64           `json:"return_period"`
	VaR          float64           `json:"var"`
	TVaR         float64           `json:"tvar"`
	SVaR         float64           `json:"svar"`
	Table        []ReturnPeriodRow `json:"table"`
	Duration     time.Duration     `json:"duration_ns"`
}
