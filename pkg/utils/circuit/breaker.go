package circuit

import (
	"context"
	"sync"
	"time"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned without calling the protected function while the breaker is open
var ErrOpen = errors.ResourceExhausted("circuit breaker is open")

type Config struct {
	MaxFailures int           // consecutive failures before opening
	Timeout     time.Duration // time spent open before a trial request
	MaxRequests int           // trial requests allowed while half-open
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
	}
}

// Breaker stops calling a failing dependency until it has had time to recover
type Breaker struct {
	name     string
	config   Config
	state    State
	failures int
	inflight int
	openedAt time.Time
	now      func() time.Time
	mutex    sync.Mutex
	log      *logger.Logger
}

func NewBreaker(name string, config Config) *Breaker {
	defaults := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
		log:    logger.GetLogger("circuit." + name),
	}
}

// Do runs fn unless the breaker is open. Context cancellation is not counted
// as a dependency failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err == nil || ctx.Err() != nil)
	return err
}

func (b *Breaker) before() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.inflight >= b.config.MaxRequests {
			return ErrOpen
		}
		b.inflight++
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateHalfOpen {
		b.inflight--
		if success {
			b.transition(StateClosed)
		} else {
			b.transition(StateOpen)
		}
		return
	}

	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.config.MaxFailures {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.log.Warnf("Circuit breaker '%s' transitioned from %s to OPEN", b.name, from)
	case StateHalfOpen:
		b.inflight = 0
		b.log.Infof("Circuit breaker '%s' transitioned from %s to HALF_OPEN", b.name, from)
	case StateClosed:
		b.failures = 0
		b.inflight = 0
		b.log.Infof("Circuit breaker '%s' transitioned from %s to CLOSED", b.name, from)
	}
}

func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

func (b *Breaker) Name() string {
	return b.name
}
