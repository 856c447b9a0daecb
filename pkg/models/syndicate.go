package models

import (
	"fmt"
	"sort"
)

// Line items read from the syndicate history
const (
	LineItemCombinedRatio = "Combined ratio"
	LineItemNet           = "Net"
)

// SyndicateRecord is one raw row of the syndicate history table
type SyndicateRecord struct {
	ManagingAgent string  `json:"managing_agent" validate:"required"`
	SyndicateCode int     `json:"syndicate_code" validate:"required"`
	Year          int     `json:"year" validate:"required"`
	LineItem      string  `json:"line_item" validate:"required"`
	Amount        float64 `json:"amount"`
	Active        bool    `json:"active"`
	ClassOfBiz    string  `json:"cob" validate:"required"`
}

// SyndicateKey identifies a syndicate under its managing agent
type SyndicateKey struct {
	ManagingAgent string `json:"managing_agent"`
	SyndicateCode int    `json:"syndicate_code"`
}

// String returns a display label for the syndicate
func (k SyndicateKey) String() string {
	return fmt.Sprintf("%s %d", k.ManagingAgent, k.SyndicateCode)
}

// Less orders keys by agent then code
func (k SyndicateKey) Less(o SyndicateKey) bool {
	if k.ManagingAgent != o.ManagingAgent {
		return k.ManagingAgent < o.ManagingAgent
	}
	return k.SyndicateCode < o.SyndicateCode
}

// SyndicateYear is the pivoted combined ratio and net premium of one syndicate year
type SyndicateYear struct {
	SyndicateKey
	Year          int     `json:"year"`
	CombinedRatio float64 `json:"combined_ratio"`
	Net           float64 `json:"net"`
}

// SyndicateStats summarises a syndicate's combined ratio across years
type SyndicateStats struct {
	SyndicateKey
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	MeanNet float64 `json:"mean_net"`
	Years   int     `json:"years"`
}

// QuartileProbability holds the chance a syndicate lands in each quartile.
// Index 0 is Q1 (lowest combined ratio).
type QuartileProbability struct {
	SyndicateKey
	Probabilities [4]float64 `json:"probabilities"`
}

// Sum returns the total probability mass
func (q QuartileProbability) Sum() float64 {
	return q.Probabilities[0] + q.Probabilities[1] + q.Probabilities[2] + q.Probabilities[3]
}

// QuartileModel is the quartile occupancy table across syndicates
type QuartileModel struct {
	Syndicates  []QuartileProbability `json:"syndicates"`
	Simulations int                   `json:"simulations"`
	Alpha       float64               `json:"alpha"`
}

// Top returns up to n syndicates ordered by descending probability of the
// given quartile (1-4). Ties keep key order.
func (m *QuartileModel) Top(n int, quartile int) []QuartileProbability {
	if quartile < 1 || quartile > 4 || n <= 0 {
		return nil
	}
	out := make([]QuartileProbability, len(m.Syndicates))
	copy(out, m.Syndicates)
	idx := quartile - 1
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probabilities[idx] > out[j].Probabilities[idx]
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// TransitionMatrix counts syndicates moving between quartiles from one year to the next
type TransitionMatrix struct {
	FromYear   int           `json:"from_year"`
	ToYear     int           `json:"to_year"`
	Syndicates int           `json:"syndicates"`
	Counts     [4][4]int     `json:"counts"`
	Share      [4][4]float64 `json:"share"`
}
