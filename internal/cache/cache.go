package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
)

// ModelCache memoizes quartile models by their full parameter tuple
type ModelCache interface {
	// Get returns the cached model, or false when the key is absent
	Get(ctx context.Context, key string) (*models.QuartileModel, bool, error)

	// Set stores a model under key
	Set(ctx context.Context, key string, model *models.QuartileModel) error

	// Invalidate drops every cached model
	Invalidate(ctx context.Context) error
}

// Recorder receives cache lookups
type Recorder interface {
	RecordCacheLookup(backend string, hit bool)
}

// Key is the parameter tuple a quartile model is derived from. Version is the
// dataset version the model was built from.
type Key struct {
	Version      uint64
	ClassOfBiz   string
	Lookback     int
	CurrentYear  int
	NetThreshold float64
	Alpha        float64
	Simulations  int
	Seed         uint64
	Weights      map[int]float64
}

// KeyFor renders k as a stable cache key
func KeyFor(k Key) string {
	var b strings.Builder
	b.WriteString("v=")
	b.WriteString(strconv.FormatUint(k.Version, 10))
	b.WriteString("|cob=")
	b.WriteString(strconv.Quote(k.ClassOfBiz))
	b.WriteString("|lookback=")
	b.WriteString(strconv.Itoa(k.Lookback))
	b.WriteString("|year=")
	b.WriteString(strconv.Itoa(k.CurrentYear))
	b.WriteString("|net=")
	b.WriteString(formatFloat(k.NetThreshold))
	b.WriteString("|alpha=")
	b.WriteString(formatFloat(k.Alpha))
	b.WriteString("|sims=")
	b.WriteString(strconv.Itoa(k.Simulations))
	b.WriteString("|seed=")
	b.WriteString(strconv.FormatUint(k.Seed, 10))

	if len(k.Weights) > 0 {
		years := make([]int, 0, len(k.Weights))
		for y := range k.Weights {
			years = append(years, y)
		}
		sort.Ints(years)
		b.WriteString("|w=")
		for i, y := range years {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(y))
			b.WriteByte(':')
			b.WriteString(formatFloat(k.Weights[y]))
		}
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
