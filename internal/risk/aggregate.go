package risk

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/actuarial-risk-core/internal/distribution"
	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// blockSize is the number of trials drawn from one random stream. Streams are
// tied to blocks rather than workers so results do not depend on Workers.
const blockSize = 4096

// streamSalt is mixed into every block stream id
const streamSalt = 0x5851f42d4c957f2d

// SimulatorConfig contains configuration for the aggregate loss simulator
type SimulatorConfig struct {
	Workers       int
	DefaultTrials int
	MaxTrials     int
	// trials plus claims drawn between context checks inside a block
	CheckInterval int
	// upper bound on the frequency mean
	MaxClaimsPerTrial float64
}

// Recorder receives simulation outcomes
type Recorder interface {
	RecordSimulation(kind string, trials int, duration time.Duration, err error)
}

// Spec describes one aggregate loss run
type Spec struct {
	Severity  distribution.Severity
	Frequency distribution.Frequency
	Layer     models.Layer
	Layered   bool
	Trials    int
	Seed      uint64
}

// Simulator runs compound frequency/severity Monte Carlo
type Simulator struct {
	config   SimulatorConfig
	log      *logger.Logger
	recorder Recorder
}

// NewSimulator creates a new aggregate loss simulator
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.DefaultTrials <= 0 {
		config.DefaultTrials = 10000
	}
	if config.MaxTrials <= 0 {
		config.MaxTrials = 5000000
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 1024
	}
	if config.MaxClaimsPerTrial <= 0 {
		config.MaxClaimsPerTrial = 100000
	}

	return &Simulator{
		config: config,
		log:    logger.GetLogger("risk.simulator"),
	}
}

// SetRecorder attaches a metrics recorder
func (s *Simulator) SetRecorder(r Recorder) {
	s.recorder = r
}

// Config returns the effective configuration
func (s *Simulator) Config() SimulatorConfig {
	return s.config
}

// Run simulates spec.Trials annual losses and returns them sorted descending.
// The same spec always yields the same loss set.
func (s *Simulator) Run(ctx context.Context, spec Spec) (*LossSet, error) {
	start := time.Now()
	trials, err := s.validate(&spec)
	if err != nil {
		return nil, err
	}

	losses := make([]float64, trials)
	blocks := (trials + blockSize - 1) / blockSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for b := 0; b < blocks; b++ {
		lo := b * blockSize
		hi := min(lo+blockSize, trials)
		stream := uint64(b)
		g.Go(func() error {
			src := rand.New(rand.NewPCG(spec.Seed, streamSalt^stream))
			return s.runBlock(gctx, spec, src, losses[lo:hi])
		})
	}
	if err := g.Wait(); err != nil {
		s.record(spec, trials, time.Since(start), err)
		return nil, err
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(losses)))

	elapsed := time.Since(start)
	s.record(spec, trials, elapsed, nil)
	s.log.Debugf("Simulated %d trials (%s/%s, layered=%t) in %v",
		trials, spec.Frequency.Family(), spec.Severity.Family(), spec.Layered, elapsed)

	return &LossSet{values: losses}, nil
}

// runBlock fills out with one annual loss per trial
func (s *Simulator) runBlock(ctx context.Context, spec Spec, src *rand.Rand, out []float64) error {
	work := 0
	tick := func() error {
		if work%s.config.CheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Canceled(err, "aggregate simulation stopped")
			}
		}
		work++
		return nil
	}

	for i := range out {
		if err := tick(); err != nil {
			return err
		}

		n := spec.Frequency.Rand(src)
		if n < 0 {
			return errors.Numericalf("claim count overflowed in trial %d", i)
		}
		var total float64
		for k := 0; k < n; k++ {
			if err := tick(); err != nil {
				return err
			}
			claim := spec.Severity.Rand(src)
			if spec.Layered {
				claim = spec.Layer.ApplyClaim(claim)
			}
			total += claim
		}
		if spec.Layered {
			total = spec.Layer.ApplyAggregate(total)
		}
		out[i] = total
	}
	return nil
}

func (s *Simulator) validate(spec *Spec) (int, error) {
	if spec.Severity == nil || spec.Frequency == nil {
		return 0, errors.Validation("severity and frequency distributions are required")
	}

	trials := spec.Trials
	if trials == 0 {
		trials = s.config.DefaultTrials
	}
	if trials < 0 {
		return 0, errors.Validationf("trials must be positive, got %d", trials)
	}
	if trials > s.config.MaxTrials {
		return 0, errors.ResourceExhausted("requested trials exceed the configured maximum")
	}
	if mean := spec.Frequency.Mean(); mean > s.config.MaxClaimsPerTrial {
		return 0, errors.ResourceExhausted(fmt.Sprintf(
			"expected claim count %g exceeds the configured maximum of %g per trial", mean, s.config.MaxClaimsPerTrial))
	}

	if spec.Layered {
		if spec.Layer.Attachment < 0 || !(spec.Layer.Limit > 0) {
			return 0, errors.Validationf("layer needs attachment >= 0 and limit > 0, got %+v", spec.Layer)
		}
		if spec.Layer.AAD < 0 {
			return 0, errors.Validationf("annual aggregate deductible must be >= 0, got %v", spec.Layer.AAD)
		}
	}
	return trials, nil
}

func (s *Simulator) record(spec Spec, trials int, d time.Duration, err error) {
	if s.recorder == nil {
		return
	}
	kind := "ground_up"
	if spec.Layered {
		kind = "layered"
	}
	s.recorder.RecordSimulation(kind, trials, d, err)
}
