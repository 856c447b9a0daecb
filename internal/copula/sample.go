package copula

import (
	"encoding/json"
)

// Sample holds correlated uniforms. Row i is variable i across all
// simulations; values lie in [0,1].
type Sample struct {
	Variables   int
	Simulations int
	data        []float64
}

func newSample(nVar, nSims int) *Sample {
	return &Sample{
		Variables:   nVar,
		Simulations: nSims,
		data:        make([]float64, nVar*nSims),
	}
}

// Row returns the draws of variable i. The slice aliases the sample.
func (s *Sample) Row(i int) []float64 {
	return s.data[i*s.Simulations : (i+1)*s.Simulations]
}

// At returns variable i in simulation j
func (s *Sample) At(i, j int) float64 {
	return s.data[i*s.Simulations+j]
}

// Rows copies the sample into one slice per variable
func (s *Sample) Rows() [][]float64 {
	out := make([][]float64, s.Variables)
	for i := range out {
		out[i] = append([]float64(nil), s.Row(i)...)
	}
	return out
}

// Transpose returns one slice per simulation, each holding every variable
func (s *Sample) Transpose() [][]float64 {
	out := make([][]float64, s.Simulations)
	for j := range out {
		row := make([]float64, s.Variables)
		for i := range row {
			row[i] = s.At(i, j)
		}
		out[j] = row
	}
	return out
}

// MarshalJSON encodes the sample as variable rows
func (s *Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Variables   int         `json:"variables"`
		Simulations int         `json:"simulations"`
		Rows        [][]float64 `json:"rows"`
	}{s.Variables, s.Simulations, s.Rows()})
}
