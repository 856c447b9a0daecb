package api

import (
	"github.com/rzzdr/actuarial-risk-core/internal/distribution"
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
)

// MarginalRequest names a distribution family and the moments it is fitted to
type MarginalRequest struct {
	Family          string  `json:"family" validate:"required"`
	Mean            float64 `json:"mean" validate:"gte=0"`
	StdDev          float64 `json:"std_dev" validate:"gte=0"`
	ZeroProbability float64 `json:"zero_probability" validate:"gte=0,lt=1"`
}

func (m MarginalRequest) severity() (distribution.Severity, error) {
	family, err := distribution.ParseFamily(m.Family)
	if err != nil {
		return nil, err
	}
	return distribution.NewSeverity(family, m.Mean, m.StdDev)
}

func (m MarginalRequest) frequency() (distribution.Frequency, error) {
	family, err := distribution.ParseFamily(m.Family)
	if err != nil {
		return nil, err
	}
	return distribution.NewFrequency(family, m.Mean, m.StdDev, m.ZeroProbability)
}

// SimulateRequest is an aggregate loss run. Layer is required when Layered is set.
type SimulateRequest struct {
	Severity     MarginalRequest `json:"severity"`
	Frequency    MarginalRequest `json:"frequency"`
	Layer        *models.Layer   `json:"layer,omitempty"`
	Layered      bool            `json:"layered"`
	Trials       int             `json:"trials" validate:"gte=0"`
	Seed         uint64          `json:"seed"`
	ReturnPeriod float64         `json:"return_period" validate:"gte=0"`
	SVaRWindow   float64         `json:"svar_window" validate:"gte=0"`
	CILevel      float64         `json:"ci_level" validate:"gte=0,lt=1"`
}

// CopulaRequest draws a dependence sample. Correlation is read by the
// elliptical families, Alpha and Variables by Clayton.
type CopulaRequest struct {
	Family      string      `json:"family" validate:"required"`
	Correlation [][]float64 `json:"correlation"`
	DF          float64     `json:"df" validate:"gte=0"`
	Alpha       float64     `json:"alpha"`
	Variables   int         `json:"variables" validate:"gte=0"`
	Simulations int         `json:"simulations" validate:"gt=0"`
	Seed        uint64      `json:"seed"`
}

// CopulaResponse wraps a sample with the family that produced it
type CopulaResponse struct {
	Family string      `json:"family"`
	Sample interface{} `json:"sample"`
}

// CurveResponse is a calibrated exposure curve with its chart points
type CurveResponse struct {
	C               float64             `json:"c"`
	B               float64             `json:"b"`
	G               float64             `json:"g"`
	MeanDamageRatio float64             `json:"mean_damage_ratio"`
	Points          []models.CurvePoint `json:"points"`
}

// RecordsResponse acknowledges a dataset replacement
type RecordsResponse struct {
	Version uint64 `json:"version"`
	Records int    `json:"records"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}
