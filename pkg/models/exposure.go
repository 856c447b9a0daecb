package models

// ExposureBand is one row of a risk profile: a sum-insured range and the
// premium written in it
type ExposureBand struct {
	Lower   float64 `json:"lower" validate:"gte=0"`
	Upper   float64 `json:"upper" validate:"gtfield=Lower"`
	Premium float64 `json:"premium" validate:"gte=0"`
}

// Midpoint returns the band's representative sum insured
func (b ExposureBand) Midpoint() float64 {
	return (b.Lower + b.Upper) / 2
}

// ExposureRow holds the per-band working of an exposure rating
type ExposureRow struct {
	Band           ExposureBand `json:"band"`
	ExpectedLoss   float64      `json:"expected_loss"`
	PremiumShare   float64      `json:"premium_share"`
	D              float64      `json:"d"`
	DPlusLimit     float64      `json:"d_plus_limit"`
	DPlusOne       float64      `json:"d_plus_one"`
	GD             float64      `json:"g_d"`
	GDPlusLimit    float64      `json:"g_d_plus_limit"`
	GDPlusOne      float64      `json:"g_d_plus_one"`
	ClaimShare     float64      `json:"claim_share"`
	FrequencyShare float64      `json:"frequency_share"`
	LossCost       float64      `json:"loss_cost"`
	ExpectedClaims float64      `json:"expected_claims"`
}

// ExposureResult carries the portfolio totals of an exposure rating
type ExposureResult struct {
	Claims          float64       `json:"claims"`
	Frequency       float64       `json:"frequency"`
	MeanDamageRatio float64       `json:"mean_damage_ratio"`
	Rows            []ExposureRow `json:"rows,omitempty"`
}

// CurvePoint is one sample of the exposure and severity curves
type CurvePoint struct {
	X        float64 `json:"x"`
	Exposure float64 `json:"exposure"`
	Severity float64 `json:"severity"`
}
