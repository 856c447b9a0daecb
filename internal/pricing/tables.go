package pricing

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

//go:embed rates.yaml
var defaultRates []byte

// RateTables maps categorical ids to multipliers for each rating dimension
type RateTables struct {
	Country  map[string]float64 `yaml:"country" json:"country"`
	Industry map[string]float64 `yaml:"industry" json:"industry"`
	Listing  map[string]float64 `yaml:"listing" json:"listing"`
	ADR      map[string]float64 `yaml:"adr" json:"adr"`
	Cover    map[string]float64 `yaml:"cover" json:"cover"`
	Retro    map[string]float64 `yaml:"retro" json:"retro"`
}

// ParseRateTables decodes a YAML rate document
func ParseRateTables(data []byte) (*RateTables, error) {
	var t RateTables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.WithType(errors.Wrap(err, "failed to parse rate tables"), errors.ErrorTypeValidation)
	}
	for name, table := range t.dimensions() {
		if len(table) == 0 {
			return nil, errors.Validationf("rate table %q is empty", name)
		}
		for id, v := range table {
			if !(v > 0) {
				return nil, errors.Validationf("rate table %q has non-positive factor %v for %q", name, v, id)
			}
		}
	}
	return &t, nil
}

// LoadRateTables reads a rate document from path, or the built-in tables when
// path is empty
func LoadRateTables(path string) (*RateTables, error) {
	if path == "" {
		return DefaultRateTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read rate tables from %s", path)
	}
	return ParseRateTables(data)
}

// DefaultRateTables returns the built-in D&O rate tables
func DefaultRateTables() (*RateTables, error) {
	return ParseRateTables(defaultRates)
}

func (t *RateTables) dimensions() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"country":  t.Country,
		"industry": t.Industry,
		"listing":  t.Listing,
		"adr":      t.ADR,
		"cover":    t.Cover,
		"retro":    t.Retro,
	}
}

func lookup(table map[string]float64, dimension, id string) (float64, error) {
	v, ok := table[id]
	if !ok {
		return 0, errors.Lookupf("%s %q not found in rate table", dimension, id)
	}
	return v, nil
}
