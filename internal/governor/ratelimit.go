// Package governor implements the Rate & Resource Governor (G) of
// spec.md §4.2: an exponential-backoff rate limiter for the scanner's
// empty-scan pacing, a CPU monitor that gates work admission, and a
// fixed-interval limiter that serializes outbound remote calls. Grounded
// on internal/monitor/system_monitor.go's threshold/interval shape and
// internal/ebird/client.go's time.Ticker-based outbound limiter.
package governor

import (
	"math"
	"sync"
	"time"
)

// RateLimiter is the classic exponential-backoff counter spec.md §4.2
// describes: increment() grows the counter, sleep() blocks for
// min(decay(counter), max), reset() clears it. Used by the scanner when a
// pass finds no new files. The store's lock-retry backoff (store/db.go
// runWithRetry) computes the same 2^n-capped shape itself and does not use
// a RateLimiter.
type RateLimiter struct {
	mu       sync.Mutex
	counter  int
	maxDelay time.Duration
}

// NewRateLimiter builds a RateLimiter whose delay is capped at maxDelay
// (spec.md default: 60s).
func NewRateLimiter(maxDelay time.Duration) *RateLimiter {
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	return &RateLimiter{maxDelay: maxDelay}
}

// Increment grows the backoff counter by one step.
func (r *RateLimiter) Increment() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
}

// Reset clears the counter, e.g. after a scan pass finds new work.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter = 0
}

// Delay returns the current decay(counter) = min(2^counter seconds, max)
// without sleeping, so callers can make the wait interruptible.
func (r *RateLimiter) Delay() time.Duration {
	r.mu.Lock()
	counter := r.counter
	r.mu.Unlock()

	seconds := math.Pow(2, float64(counter))
	delay := time.Duration(seconds * float64(time.Second))
	if delay > r.maxDelay || delay <= 0 {
		return r.maxDelay
	}
	return delay
}

// Sleep blocks for Delay(), interruptible via done.
func (r *RateLimiter) Sleep(done <-chan struct{}) {
	timer := time.NewTimer(r.Delay())
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-done:
	}
}

// FixedRateLimiter serialises outbound calls to at most one per interval
// (spec.md §4.2 "Fixed-Rate Limiter"), grounded on
// internal/ebird/client.go's time.NewTicker(...) rate limiter.
type FixedRateLimiter struct {
	ticker *time.Ticker
}

// NewFixedRateLimiter builds a limiter admitting one call per interval. An
// interval of zero disables pacing (every Wait returns immediately).
func NewFixedRateLimiter(interval time.Duration) *FixedRateLimiter {
	if interval <= 0 {
		return &FixedRateLimiter{}
	}
	return &FixedRateLimiter{ticker: time.NewTicker(interval)}
}

// Wait blocks until the next call slot is available.
func (f *FixedRateLimiter) Wait() {
	if f.ticker == nil {
		return
	}
	<-f.ticker.C
}

// Stop releases the underlying ticker.
func (f *FixedRateLimiter) Stop() {
	if f.ticker != nil {
		f.ticker.Stop()
	}
}
