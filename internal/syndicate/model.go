package syndicate

import (
	"context"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/actuarial-risk-core/internal/copula"
	"github.com/rzzdr/actuarial-risk-core/internal/distribution"
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

const (
	drawSalt   = 0x8b7a1d5e0c3f9a21
	copulaSalt = 0x51f04c6d2e9b7a13
)

// YearTable pivots raw records into one row per syndicate and year. Only
// active records of the class with a positive amount from startYear onward are
// kept. Rows without a combined ratio are dropped; a missing net premium is 0.
func YearTable(records []models.SyndicateRecord, classOfBiz string, startYear int) []models.SyndicateYear {
	type rowKey struct {
		models.SyndicateKey
		year int
	}

	rows := make(map[rowKey]*models.SyndicateYear)
	for _, r := range records {
		if r.ClassOfBiz != classOfBiz || !r.Active || r.Year < startYear || !(r.Amount > 0) {
			continue
		}
		if r.LineItem != models.LineItemCombinedRatio && r.LineItem != models.LineItemNet {
			continue
		}

		key := rowKey{models.SyndicateKey{ManagingAgent: r.ManagingAgent, SyndicateCode: r.SyndicateCode}, r.Year}
		row, ok := rows[key]
		if !ok {
			row = &models.SyndicateYear{SyndicateKey: key.SyndicateKey, Year: r.Year}
			rows[key] = row
		}
		if r.LineItem == models.LineItemCombinedRatio {
			row.CombinedRatio += r.Amount
		} else {
			row.Net += r.Amount
		}
	}

	out := make([]models.SyndicateYear, 0, len(rows))
	for _, row := range rows {
		if row.CombinedRatio > 0 {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SyndicateKey != out[j].SyndicateKey {
			return out[i].SyndicateKey.Less(out[j].SyndicateKey)
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// Statistics summarises each syndicate's combined ratio across the years that
// carry both line items. The mean is weighted by year (missing years weigh 1),
// the standard deviation is the unweighted population one. Syndicates whose
// mean net premium is below netThreshold, or whose weighted mean is not
// positive, are left out.
func Statistics(rows []models.SyndicateYear, weights map[int]float64, netThreshold float64) []models.SyndicateStats {
	type series struct {
		ratios, weights, nets []float64
	}

	groups := make(map[models.SyndicateKey]*series)
	var keys []models.SyndicateKey
	for _, row := range rows {
		if !(row.Net > 0) {
			continue
		}
		g, ok := groups[row.SyndicateKey]
		if !ok {
			g = &series{}
			groups[row.SyndicateKey] = g
			keys = append(keys, row.SyndicateKey)
		}
		w, ok := weights[row.Year]
		if !ok {
			w = 1
		}
		g.ratios = append(g.ratios, row.CombinedRatio)
		g.weights = append(g.weights, w)
		g.nets = append(g.nets, row.Net)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]models.SyndicateStats, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		mean := distribution.WeightedMean(g.ratios, g.weights)
		_, std := stat.PopMeanStdDev(g.ratios, nil)
		meanNet := stat.Mean(g.nets, nil)
		if !(mean > 0) || meanNet < netThreshold {
			continue
		}
		out = append(out, models.SyndicateStats{
			SyndicateKey: key,
			Mean:         mean,
			StdDev:       std,
			MeanNet:      meanNet,
			Years:        len(g.ratios),
		})
	}
	return out
}

// AssignQuartiles maps each value to its cross-sectional quartile 1-4. Cut
// points are empirical quantiles; a value on a cut point takes the lower
// quartile.
func AssignQuartiles(values []float64) []int {
	out := make([]int, len(values))
	if len(values) == 0 {
		return out
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q2 := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)

	for i, v := range values {
		switch {
		case v <= q1:
			out[i] = 1
		case v <= q2:
			out[i] = 2
		case v <= q3:
			out[i] = 3
		default:
			out[i] = 4
		}
	}
	return out
}

// BuildModel simulates each syndicate's combined ratio from a moment-matched
// lognormal, couples the syndicates through a Clayton copula and counts how
// often each one lands in each quartile.
func BuildModel(ctx context.Context, stats []models.SyndicateStats, alpha float64, nSims int, seed uint64) (*models.QuartileModel, error) {
	if len(stats) == 0 {
		return nil, errors.Validation("no syndicates left to model")
	}
	if nSims < 1 {
		return nil, errors.Validationf("simulation count must be positive, got %d", nSims)
	}

	nSyn := len(stats)
	src := rand.New(rand.NewPCG(seed, drawSalt))
	marginals := make([][]float64, nSyn)
	for i, s := range stats {
		d, err := distribution.LogNormalParams(s.Mean, s.StdDev)
		if err != nil {
			return nil, errors.Wrapf(err, "syndicate %s", s.SyndicateKey)
		}
		marginals[i] = distribution.SampleSeverity(d, nSims, src)
	}

	gen := copula.NewGeneratorFrom(rand.New(rand.NewPCG(seed, copulaSalt)))
	dependence, err := gen.Clayton(nSyn, nSims, alpha)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err, "quartile model canceled")
	}

	for i := range marginals {
		marginals[i] = reorder(marginals[i], dependence.Row(i))
	}

	counts := make([][4]int, nSyn)
	column := make([]float64, nSyn)
	for j := 0; j < nSims; j++ {
		if j%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Canceled(err, "quartile model canceled")
			}
		}
		for i := range marginals {
			column[i] = marginals[i][j]
		}
		for i, q := range AssignQuartiles(column) {
			counts[i][q-1]++
		}
	}

	model := &models.QuartileModel{
		Syndicates:  make([]models.QuartileProbability, nSyn),
		Simulations: nSims,
		Alpha:       alpha,
	}
	for i, s := range stats {
		p := models.QuartileProbability{SyndicateKey: s.SyndicateKey}
		for q := range p.Probabilities {
			p.Probabilities[q] = float64(counts[i][q]) / float64(nSims)
		}
		model.Syndicates[i] = p
	}
	return model, nil
}

// reorder arranges draws so their ranks follow the ranks of u. The multiset of
// draws is unchanged.
func reorder(draws, u []float64) []float64 {
	sorted := append([]float64(nil), draws...)
	sort.Float64s(sorted)

	order := make([]int, len(u))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return u[order[a]] < u[order[b]] })

	out := make([]float64, len(draws))
	for rank, j := range order {
		out[j] = sorted[rank]
	}
	return out
}

// Transitions assigns quartiles on the combined ratio of the two latest years
// in rows and counts how syndicates present in both moved between them.
func Transitions(rows []models.SyndicateYear) (*models.TransitionMatrix, error) {
	latest := 0
	for _, row := range rows {
		latest = max(latest, row.Year)
	}
	if latest == 0 {
		return nil, errors.NotFound("no combined ratios to compare")
	}
	prevYear := latest - 1

	prev := make(map[models.SyndicateKey]float64)
	curr := make(map[models.SyndicateKey]float64)
	for _, row := range rows {
		switch row.Year {
		case prevYear:
			prev[row.SyndicateKey] = row.CombinedRatio
		case latest:
			curr[row.SyndicateKey] = row.CombinedRatio
		}
	}

	var keys []models.SyndicateKey
	for k := range curr {
		if _, ok := prev[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, errors.NotFoundf("no syndicate reports both %d and %d", prevYear, latest)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	before := make([]float64, len(keys))
	after := make([]float64, len(keys))
	for i, k := range keys {
		before[i] = prev[k]
		after[i] = curr[k]
	}
	qb := AssignQuartiles(before)
	qa := AssignQuartiles(after)

	m := &models.TransitionMatrix{FromYear: prevYear, ToYear: latest, Syndicates: len(keys)}
	for i := range keys {
		m.Counts[qb[i]-1][qa[i]-1]++
	}
	for i := range m.Counts {
		for j := range m.Counts[i] {
			m.Share[i][j] = float64(m.Counts[i][j]) / float64(len(keys))
		}
	}
	return m, nil
}
