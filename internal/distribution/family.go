package distribution

import (
	"strings"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
)

// Family enumerates the supported loss distributions
type Family int

const (
	FamilyLogNormal Family = iota
	FamilyGamma
	FamilyPoisson
	FamilyNegativeBinomial
	FamilyZeroInflatedPoisson
)

var familyNames = map[Family]string{
	FamilyLogNormal:           "LogNormal",
	FamilyGamma:               "Gamma",
	FamilyPoisson:             "Poisson",
	FamilyNegativeBinomial:    "NBinomial",
	FamilyZeroInflatedPoisson: "Zero-Inflated Poisson",
}

// String returns the display name of the family
func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "Unknown"
}

// IsSeverity reports whether the family models claim size
func (f Family) IsSeverity() bool {
	return f == FamilyLogNormal || f == FamilyGamma
}

// IsFrequency reports whether the family models claim counts
func (f Family) IsFrequency() bool {
	return f == FamilyPoisson || f == FamilyNegativeBinomial || f == FamilyZeroInflatedPoisson
}

// ParseFamily resolves a family from its display name. Matching ignores case
// and accepts a few common aliases.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lognormal", "lognorm":
		return FamilyLogNormal, nil
	case "gamma":
		return FamilyGamma, nil
	case "poisson":
		return FamilyPoisson, nil
	case "nbinomial", "negativebinomial", "negative binomial", "nbinom":
		return FamilyNegativeBinomial, nil
	case "zero-inflated poisson", "zeroinflatedpoisson", "zip":
		return FamilyZeroInflatedPoisson, nil
	}
	return 0, errors.Validationf("unknown distribution family %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Family) UnmarshalText(text []byte) error {
	parsed, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
