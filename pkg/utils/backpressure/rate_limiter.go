package backpressure

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// ErrRequestTooLarge is returned when a request needs more tokens than the burst
var ErrRequestTooLarge = errors.ResourceExhausted("request size exceeds burst capacity")

// TokenBucketLimiter admits work at a steady rate with a bounded burst
type TokenBucketLimiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mutex      sync.Mutex
	log        *logger.Logger
}

// NewTokenBucketLimiter creates a limiter refilling rate tokens per second
func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1.0
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		now:    time.Now,
		log:    logger.GetLogger("backpressure.token_bucket"),
	}
	limiter.lastUpdate = limiter.now()

	limiter.log.Infof("Token bucket rate limiter created with rate=%.2f, burst=%d", rate, burst)
	return limiter
}

// Allow checks if a single operation is allowed
func (tb *TokenBucketLimiter) Allow() bool {
	return tb.AllowN(1)
}

// AllowN takes n tokens if they are available
func (tb *TokenBucketLimiter) AllowN(n int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// WaitN blocks until n tokens are available or ctx is done
func (tb *TokenBucketLimiter) WaitN(ctx context.Context, n int) error {
	if n > tb.burst {
		return ErrRequestTooLarge
	}

	for {
		if tb.AllowN(n) {
			return nil
		}

		timer := time.NewTimer(tb.waitTime(n))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Canceled(ctx.Err(), "rate limiter wait canceled")
		}
	}
}

// RetryAfter estimates how long until a single token is available
func (tb *TokenBucketLimiter) RetryAfter() time.Duration {
	return tb.waitTime(1)
}

// Limit returns the refill rate in tokens per second
func (tb *TokenBucketLimiter) Limit() float64 {
	return tb.rate
}

// Burst returns the burst capacity
func (tb *TokenBucketLimiter) Burst() int {
	return tb.burst
}

// TokensRemaining returns the whole tokens currently available
func (tb *TokenBucketLimiter) TokensRemaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	return int(tb.tokens)
}

func (tb *TokenBucketLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(float64(tb.burst), tb.tokens+elapsed.Seconds()*tb.rate)
	tb.lastUpdate = now
}

func (tb *TokenBucketLimiter) waitTime(n int) time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	needed := float64(n) - tb.tokens
	if needed <= 0 {
		return 0
	}
	wait := time.Duration(needed / tb.rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}
