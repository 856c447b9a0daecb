package syndicate

import (
	"context"
	"time"

	"github.com/rzzdr/actuarial-risk-core/internal/cache"
	"github.com/rzzdr/actuarial-risk-core/internal/store"
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/validation"
)

// Config contains the defaults applied to quartile requests
type Config struct {
	DefaultSimulations  int
	MaxSimulations      int
	DefaultAlpha        float64
	DefaultNetThreshold float64
	DefaultLookback     int
	CurrentYear         int
}

// Params selects the syndicates and simulation settings of a quartile model.
// Zero values take the service defaults.
type Params struct {
	ClassOfBiz   string          `json:"cob" validate:"required"`
	Lookback     int             `json:"lookback" validate:"gte=0"`
	CurrentYear  int             `json:"current_year" validate:"gte=0"`
	NetThreshold float64         `json:"net_threshold" validate:"gte=0"`
	Alpha        float64         `json:"alpha" validate:"gte=0"`
	Simulations  int             `json:"simulations" validate:"gte=0"`
	Seed         uint64          `json:"seed"`
	Weights      map[int]float64 `json:"weights"`
}

// Recorder receives model build timings
type Recorder interface {
	RecordSimulation(kind string, trials int, duration time.Duration, err error)
}

// Service builds quartile models from the syndicate dataset and memoizes them
type Service struct {
	config   Config
	store    *store.SyndicateStore
	cache    cache.ModelCache
	recorder Recorder
	log      *logger.Logger
}

// NewService creates a service over st. Every dataset replacement invalidates
// the cache.
func NewService(config Config, st *store.SyndicateStore, c cache.ModelCache) *Service {
	if config.DefaultSimulations <= 0 {
		config.DefaultSimulations = 10000
	}
	if config.MaxSimulations <= 0 {
		config.MaxSimulations = 200000
	}
	if config.DefaultAlpha <= 0 {
		config.DefaultAlpha = 2
	}
	if config.DefaultNetThreshold <= 0 {
		config.DefaultNetThreshold = 20
	}
	if config.DefaultLookback <= 0 {
		config.DefaultLookback = 10
	}
	if c == nil {
		c = cache.NewMemory(cache.DefaultMemoryConfig())
	}

	s := &Service{
		config: config,
		store:  st,
		cache:  c,
		log:    logger.GetLogger("syndicate.service"),
	}
	st.OnChange(func(ctx context.Context, version uint64) {
		if err := s.InvalidateCache(ctx); err != nil {
			s.log.Errorf("Failed to invalidate quartile cache for dataset version %d: %v", version, err)
		}
	})
	return s
}

// SetRecorder attaches a metrics recorder
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Quartiles returns the quartile model for p, from cache when possible
func (s *Service) Quartiles(ctx context.Context, p Params) (*models.QuartileModel, error) {
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	s.applyDefaults(&p)
	if p.Simulations > s.config.MaxSimulations {
		return nil, errors.ResourceExhausted("simulation count exceeds the configured maximum")
	}

	records, version := s.store.Snapshot()
	if p.CurrentYear == 0 {
		p.CurrentYear = latestYear(records)
	}

	key := cache.KeyFor(cache.Key{
		Version:      version,
		ClassOfBiz:   p.ClassOfBiz,
		Lookback:     p.Lookback,
		CurrentYear:  p.CurrentYear,
		NetThreshold: p.NetThreshold,
		Alpha:        p.Alpha,
		Simulations:  p.Simulations,
		Seed:         p.Seed,
		Weights:      p.Weights,
	})
	if model, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warnf("Quartile cache lookup failed: %v", err)
	} else if ok {
		return model, nil
	}

	start := time.Now()
	rows := YearTable(records, p.ClassOfBiz, p.CurrentYear-p.Lookback)
	stats := Statistics(rows, p.Weights, p.NetThreshold)
	s.log.Debugf("Modelling %d syndicates for %s from %d year rows", len(stats), p.ClassOfBiz, len(rows))

	model, err := BuildModel(ctx, stats, p.Alpha, p.Simulations, p.Seed)
	if s.recorder != nil {
		s.recorder.RecordSimulation("quartile", p.Simulations, time.Since(start), err)
	}
	if err != nil {
		s.log.Warnf("Quartile model for %s failed: %v", p.ClassOfBiz, err)
		return nil, err
	}

	// keyed by version, so a replacement racing this write leaves it unreachable
	if err := s.cache.Set(ctx, key, model); err != nil {
		s.log.Warnf("Failed to cache quartile model: %v", err)
	}
	return model, nil
}

// Transitions returns the quartile transition matrix between the two latest
// years of the class
func (s *Service) Transitions(_ context.Context, classOfBiz string, lookback int) (*models.TransitionMatrix, error) {
	if classOfBiz == "" {
		return nil, errors.Validation("class of business is required")
	}
	if lookback <= 0 {
		lookback = s.config.DefaultLookback
	}
	records := s.store.Records()
	current := s.config.CurrentYear
	if current == 0 {
		current = latestYear(records)
	}
	return Transitions(YearTable(records, classOfBiz, current-lookback))
}

// InvalidateCache drops every memoized model
func (s *Service) InvalidateCache(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return errors.Wrap(err, "failed to invalidate quartile cache")
	}
	s.log.Info("Quartile cache invalidated")
	return nil
}

func (s *Service) applyDefaults(p *Params) {
	if p.Lookback == 0 {
		p.Lookback = s.config.DefaultLookback
	}
	if p.CurrentYear == 0 {
		p.CurrentYear = s.config.CurrentYear
	}
	if p.NetThreshold == 0 {
		p.NetThreshold = s.config.DefaultNetThreshold
	}
	if p.Alpha == 0 {
		p.Alpha = s.config.DefaultAlpha
	}
	if p.Simulations == 0 {
		p.Simulations = s.config.DefaultSimulations
	}
}

func latestYear(records []models.SyndicateRecord) int {
	latest := 0
	for _, r := range records {
		latest = max(latest, r.Year)
	}
	return latest
}
