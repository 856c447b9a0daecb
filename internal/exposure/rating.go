package exposure

import (
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/validation"
)

// Request is an exposure rating of one layer against a risk profile
type Request struct {
	C              float64               `json:"c"`
	LossRatio      float64               `json:"loss_ratio" validate:"gte=0"`
	Attachment     float64               `json:"attachment" validate:"gte=0"`
	Limit          float64               `json:"limit" validate:"gt=0"`
	SubjectPremium float64               `json:"subject_premium" validate:"gt=0"`
	Bands          []models.ExposureBand `json:"bands" validate:"required,min=1,dive"`
	IncludeRows    bool                  `json:"include_rows"`
}

// Rate computes the loss cost and claim count ceded to the layer. Each band
// is represented by its midpoint sum insured.
func Rate(req Request) (*models.ExposureResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	curve, err := NewCurve(req.C)
	if err != nil {
		return nil, err
	}
	return curve.Rate(req)
}

// Rate applies the curve to every band of req. The frequency share uses the
// curve's slope one currency unit above the attachment.
func (cv *Curve) Rate(req Request) (*models.ExposureResult, error) {
	result := &models.ExposureResult{MeanDamageRatio: cv.MeanDamageRatio()}
	rows := make([]models.ExposureRow, 0, len(req.Bands))

	for i, band := range req.Bands {
		mid := band.Midpoint()
		if !(mid > 0) {
			return nil, errors.Validationf("band %d has a non-positive midpoint", i)
		}

		row := models.ExposureRow{
			Band:         band,
			ExpectedLoss: band.Premium * req.LossRatio,
			PremiumShare: band.Premium / req.SubjectPremium,
			D:            req.Attachment / mid,
			DPlusLimit:   (req.Attachment + req.Limit) / mid,
			DPlusOne:     (req.Attachment + 1) / mid,
		}
		row.GD = cv.Eval(row.D)
		row.GDPlusLimit = cv.Eval(row.DPlusLimit)
		row.GDPlusOne = cv.Eval(row.DPlusOne)
		row.ClaimShare = row.GDPlusLimit - row.GD
		row.FrequencyShare = row.GDPlusOne - row.GD
		row.LossCost = row.ExpectedLoss * row.ClaimShare
		row.ExpectedClaims = req.SubjectPremium * req.LossRatio * row.PremiumShare * row.FrequencyShare

		result.Claims += row.LossCost
		result.Frequency += row.ExpectedClaims
		rows = append(rows, row)
	}

	if req.IncludeRows {
		result.Rows = rows
	}
	return result, nil
}
