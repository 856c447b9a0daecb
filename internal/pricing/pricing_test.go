package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

func unitTables() *RateTables {
	return &RateTables{
		Country:  map[string]float64{"United Kingdom": 1},
		Industry: map[string]float64{"Banking": 1},
		Listing:  map[string]float64{"Public": 1},
		ADR:      map[string]float64{"Level 1": 1},
		Cover:    map[string]float64{"Side A/B/C": 1},
		Retro:    map[string]float64{"Full Prior Acts": 1},
	}
}

func annualRequest() Request {
	return Request{
		YearOfAccount:    2023,
		Limit:            2970400,
		Excess:           0,
		Assets:           50000,
		CountryID:        "United Kingdom",
		IndustryID:       "Banking",
		ListingID:        "Public",
		ADRID:            "No ADR",
		CoverID:          "Side A/B/C",
		RetroID:          "Full Prior Acts",
		Brokerage:        0.2,
		OtherCommissions: 0,
		InceptionDate:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type quoteRecorder struct {
	calls int
	class string
	err   error
}

func (r *quoteRecorder) RecordQuote(class string, _ time.Duration, err error) {
	r.calls++
	r.class = class
	r.err = err
}

func TestILFDoublesAtOnePlusZ(t *testing.T) {
	assert.InDelta(t, 1, ILF(1e6, 1e6, 1.9704), 1e-12)
	assert.InDelta(t, 2, ILF(2970400, 1e6, 1.9704), 1e-9)
	assert.Equal(t, 0.0, ILF(0, 1e6, 1.9704))
}

func TestNetILF(t *testing.T) {
	full := ILF(5e6, 1e6, 1.9704)
	assert.InDelta(t, full, NetILF(5e6, 0, 1e6, 1.9704), 1e-12)
	assert.InDelta(t, full-ILF(2e6, 1e6, 1.9704), NetILF(3e6, 2e6, 1e6, 1.9704), 1e-12)
	// zero-width layer
	assert.InDelta(t, ILF(2e6, 1e6, 1.9704), NetILF(0, 2e6, 1e6, 1.9704), 1e-12)
}

func TestTermAdjustment(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, TermAdjustment(start, start.AddDate(1, 0, 0)))
	assert.Equal(t, 1.0, TermAdjustment(start, start.AddDate(0, 0, 367)))
	assert.Equal(t, 1.0, TermAdjustment(start, start.AddDate(0, 0, 363)))
	assert.InDelta(t, 183.0/365, TermAdjustment(start, start.AddDate(0, 0, 182)), 1e-12)
	assert.InDelta(t, 731.0/365, TermAdjustment(start, start.AddDate(0, 0, 730)), 1e-12)
}

func TestBrokerageAdjustment(t *testing.T) {
	adj, err := BrokerageAdjustment(0.2, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, adj, 1e-12)

	adj, err = BrokerageAdjustment(0.6, 0.4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, adj)

	adj, err = BrokerageAdjustment(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, adj)

	_, err = BrokerageAdjustment(0.8, 0.3)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestQuoteAnnualPolicy(t *testing.T) {
	rec := &quoteRecorder{}
	p := NewPricer(Config{}, unitTables())
	p.SetRecorder(rec)

	q, err := p.Quote(annualRequest())
	require.NoError(t, err)

	assert.Equal(t, "188098.5", q.Price.String())
	assert.Equal(t, "188098.50", q.Price.StringFixed(2))
	assert.Equal(t, DefaultClass, q.Class)
	assert.InDelta(t, 2.2, q.Multiplier, 1e-9)
	assert.Equal(t, 1.0, q.TermAdjustment)
	assert.InDelta(t, 1.25, q.BrokerageAdjustment, 1e-12)
	assert.InDelta(t, 1/0.731, q.ProfitLoading, 1e-12)
	assert.NotEmpty(t, q.ID)

	require.Len(t, q.Stages, 5)
	names := make([]string, len(q.Stages))
	for i, s := range q.Stages {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Base", "Factors", "Term", "Brokerage", "Profit"}, names)
	assert.Equal(t, "50000", q.Stages[0].Amount.String())
	assert.InDelta(t, 110000, q.Stages[1].Amount.InexactFloat64(), 1e-6)
	assert.InDelta(t, 137500, q.Stages[3].Amount.InexactFloat64(), 1e-6)
	assert.InDelta(t, 27500, q.Stages[3].Delta.InexactFloat64(), 1e-6)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, DefaultClass, rec.class)
	assert.NoError(t, rec.err)
}

func TestQuoteUsesClassTargetLossRatio(t *testing.T) {
	p := NewPricer(Config{TargetLossRatios: map[string]float64{"DO US": 0.5}}, unitTables())
	req := annualRequest()
	req.Class = "DO US"

	q, err := p.Quote(req)
	require.NoError(t, err)
	assert.Equal(t, 0.5, q.TargetLossRatio)
	assert.Equal(t, "275000", q.Price.Round(0).String())
}

func TestQuoteAppliesADR(t *testing.T) {
	tables := unitTables()
	tables.ADR["Level 1"] = 1.5
	p := NewPricer(Config{}, tables)

	req := annualRequest()
	base, err := p.Quote(req)
	require.NoError(t, err)

	req.ADRID = "Level 1"
	withADR, err := p.Quote(req)
	require.NoError(t, err)
	assert.InDelta(t, base.Multiplier*1.5, withADR.Multiplier, 1e-9)

	req.ADRID = ""
	noADR, err := p.Quote(req)
	require.NoError(t, err)
	assert.Equal(t, base.Multiplier, noADR.Multiplier)
}

func TestQuoteLookupFailure(t *testing.T) {
	rec := &quoteRecorder{}
	p := NewPricer(Config{}, unitTables())
	p.SetRecorder(rec)

	req := annualRequest()
	req.CountryID = "Atlantis"
	_, err := p.Quote(req)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLookup))
	assert.Contains(t, err.Error(), "Atlantis")
	assert.Error(t, rec.err)
}

func TestQuoteValidation(t *testing.T) {
	p := NewPricer(Config{}, unitTables())

	req := annualRequest()
	req.ExpiryDate = req.InceptionDate.AddDate(0, 0, -1)
	_, err := p.Quote(req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	req = annualRequest()
	req.Assets = 0
	_, err = p.Quote(req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	req = annualRequest()
	req.Brokerage = 0.7
	req.OtherCommissions = 0.4
	_, err = p.Quote(req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestDefaultRateTables(t *testing.T) {
	tables, err := DefaultRateTables()
	require.NoError(t, err)
	assert.Equal(t, 1.0, tables.Country["United Kingdom"])
	assert.Equal(t, 1.0, tables.Cover["Side A/B/C"])

	p := NewPricer(DefaultConfig(), tables)
	req := annualRequest()
	req.CountryID = "United States"
	q, err := p.Quote(req)
	require.NoError(t, err)
	assert.True(t, q.Price.IsPositive())
}

func TestParseRateTablesRejectsBadInput(t *testing.T) {
	_, err := ParseRateTables([]byte("country: ["))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = ParseRateTables([]byte("country:\n  UK: 1\n"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	doc := `
country: {UK: 1}
industry: {Banking: 1}
listing: {Public: 1}
adr: {Level 1: 1}
cover: {Side A: -1}
retro: {Inception: 1}
`
	_, err = ParseRateTables([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cover")
}

func TestLoadRateTablesMissingFile(t *testing.T) {
	_, err := LoadRateTables("/nonexistent/rates.yaml")
	assert.Error(t, err)

	tables, err := LoadRateTables("")
	require.NoError(t, err)
	assert.NotEmpty(t, tables.Retro)
}
