package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/validation"
)

// DefaultClass is the class of business priced when a request names none
const DefaultClass = "DO WW"

// Config contains the constants of the rating model
type Config struct {
	ILFBaseLimit           float64
	ILFZ                   float64
	FixedFactor            float64
	NoADRID                string
	DefaultTargetLossRatio float64
	TargetLossRatios       map[string]float64
}

// DefaultConfig returns the D&O worldwide rating constants
func DefaultConfig() Config {
	return Config{
		ILFBaseLimit:           1e6,
		ILFZ:                   1.9704,
		FixedFactor:            1.1,
		NoADRID:                "No ADR",
		DefaultTargetLossRatio: 0.731,
	}
}

// Request is a rating request for one D&O risk
type Request struct {
	YearOfAccount    int       `json:"year_of_account"`
	Class            string    `json:"class"`
	Limit            float64   `json:"limit" validate:"gte=0"`
	Excess           float64   `json:"excess" validate:"gte=0"`
	Assets           float64   `json:"assets" validate:"gt=0"`
	CountryID        string    `json:"country_id" validate:"required"`
	IndustryID       string    `json:"industry_id" validate:"required"`
	ListingID        string    `json:"listing_id" validate:"required"`
	ADRID            string    `json:"adr_id"`
	CoverID          string    `json:"cover_id" validate:"required"`
	RetroID          string    `json:"retro_id" validate:"required"`
	Brokerage        float64   `json:"brokerage" validate:"gte=0,lte=1"`
	OtherCommissions float64   `json:"other_commissions" validate:"gte=0,lte=1"`
	InceptionDate    time.Time `json:"inception_date" validate:"required"`
	ExpiryDate       time.Time `json:"expiry_date" validate:"required,gtfield=InceptionDate"`
}

// Stage is one step of the pricing waterfall
type Stage struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Delta  decimal.Decimal `json:"delta"`
}

// Quote is the priced result of a request
type Quote struct {
	ID                  string          `json:"id"`
	Class               string          `json:"class"`
	Factors             []Factor        `json:"factors"`
	Multiplier          float64         `json:"multiplier"`
	TermAdjustment      float64         `json:"term_adjustment"`
	BrokerageAdjustment float64         `json:"brokerage_adjustment"`
	ProfitLoading       float64         `json:"profit_loading"`
	TargetLossRatio     float64         `json:"target_loss_ratio"`
	Stages              []Stage         `json:"stages"`
	Price               decimal.Decimal `json:"price"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Recorder receives pricing outcomes
type Recorder interface {
	RecordQuote(class string, duration time.Duration, err error)
}

// Pricer rates requests against a fixed set of rate tables
type Pricer struct {
	config   Config
	tables   *RateTables
	log      *logger.Logger
	recorder Recorder
}

// NewPricer creates a new pricer
func NewPricer(config Config, tables *RateTables) *Pricer {
	defaults := DefaultConfig()
	if config.ILFBaseLimit <= 0 {
		config.ILFBaseLimit = defaults.ILFBaseLimit
	}
	if config.ILFZ <= 0 {
		config.ILFZ = defaults.ILFZ
	}
	if config.FixedFactor <= 0 {
		config.FixedFactor = defaults.FixedFactor
	}
	if config.NoADRID == "" {
		config.NoADRID = defaults.NoADRID
	}
	if config.DefaultTargetLossRatio <= 0 {
		config.DefaultTargetLossRatio = defaults.DefaultTargetLossRatio
	}
	ratios := make(map[string]float64, len(config.TargetLossRatios))
	for class, lr := range config.TargetLossRatios {
		ratios[strings.ToLower(class)] = lr
	}
	config.TargetLossRatios = ratios

	return &Pricer{
		config: config,
		tables: tables,
		log:    logger.GetLogger("pricing.pricer"),
	}
}

// SetRecorder attaches a metrics recorder
func (p *Pricer) SetRecorder(r Recorder) {
	p.recorder = r
}

// Tables returns the rate tables in use
func (p *Pricer) Tables() *RateTables {
	return p.tables
}

// TargetLossRatio returns the loss ratio targeted for a class of business.
// Class names match case-insensitively.
func (p *Pricer) TargetLossRatio(class string) float64 {
	if lr, ok := p.config.TargetLossRatios[strings.ToLower(class)]; ok && lr > 0 {
		return lr
	}
	return p.config.DefaultTargetLossRatio
}

// Factors looks up and computes every multiplier for req
func (p *Pricer) Factors(req Request) (*Factors, error) {
	var (
		f   Factors
		err error
	)
	if f.Country, err = lookup(p.tables.Country, "country", req.CountryID); err != nil {
		return nil, err
	}
	if f.Industry, err = lookup(p.tables.Industry, "industry", req.IndustryID); err != nil {
		return nil, err
	}
	if f.Listing, err = lookup(p.tables.Listing, "listing", req.ListingID); err != nil {
		return nil, err
	}
	f.ADR = 1
	if req.ADRID != "" && req.ADRID != p.config.NoADRID {
		if f.ADR, err = lookup(p.tables.ADR, "adr", req.ADRID); err != nil {
			return nil, err
		}
	}
	if f.Cover, err = lookup(p.tables.Cover, "cover", req.CoverID); err != nil {
		return nil, err
	}
	if f.Retro, err = lookup(p.tables.Retro, "retro", req.RetroID); err != nil {
		return nil, err
	}
	if f.Brokerage, err = BrokerageAdjustment(req.Brokerage, req.OtherCommissions); err != nil {
		return nil, err
	}

	f.ILF = NetILF(req.Limit, req.Excess, p.config.ILFBaseLimit, p.config.ILFZ)
	f.Fixed = p.config.FixedFactor
	f.Profit = 1 / p.TargetLossRatio(classOf(req))
	return &f, nil
}

// Quote prices req. Stages run base, factors, term, brokerage, profit.
func (p *Pricer) Quote(req Request) (*Quote, error) {
	start := time.Now()
	quote, err := p.quote(req)
	if p.recorder != nil {
		p.recorder.RecordQuote(classOf(req), time.Since(start), err)
	}
	if err != nil {
		p.log.Warnw("Pricing request rejected", "class", classOf(req), "error", err)
		return nil, err
	}

	p.log.Debugw("Priced request", "quote_id", quote.ID, "price", quote.Price.String())
	return quote, nil
}

func (p *Pricer) quote(req Request) (*Quote, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if p.tables == nil {
		return nil, errors.Internal("pricer has no rate tables")
	}

	factors, err := p.Factors(req)
	if err != nil {
		return nil, err
	}
	multiplier := factors.Multiplier()
	term := TermAdjustment(req.InceptionDate, req.ExpiryDate)

	base := decimal.NewFromFloat(req.Assets)
	annual := base.Mul(decimal.NewFromFloat(multiplier))
	risk := annual.Mul(decimal.NewFromFloat(term))
	gross := risk.Mul(decimal.NewFromFloat(factors.Brokerage))
	price := gross.Mul(decimal.NewFromFloat(factors.Profit))

	class := classOf(req)
	return &Quote{
		ID:                  uuid.NewString(),
		Class:               class,
		Factors:             factors.Ordered(),
		Multiplier:          multiplier,
		TermAdjustment:      term,
		BrokerageAdjustment: factors.Brokerage,
		ProfitLoading:       factors.Profit,
		TargetLossRatio:     p.TargetLossRatio(class),
		Stages: []Stage{
			{Name: "Base", Amount: base, Delta: base},
			{Name: "Factors", Amount: annual, Delta: annual.Sub(base)},
			{Name: "Term", Amount: risk, Delta: risk.Sub(annual)},
			{Name: "Brokerage", Amount: gross, Delta: gross.Sub(risk)},
			{Name: "Profit", Amount: price, Delta: price.Sub(gross)},
		},
		Price:     price.Round(2),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func classOf(req Request) string {
	if req.Class == "" {
		return DefaultClass
	}
	return req.Class
}
