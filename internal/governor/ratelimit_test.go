package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_DelayGrowsExponentiallyThenCaps(t *testing.T) {
	r := NewRateLimiter(60 * time.Second)

	assert.Equal(t, time.Second, r.Delay(), "counter=0 -> 2^0s")

	r.Increment()
	assert.Equal(t, 2*time.Second, r.Delay(), "counter=1 -> 2^1s")

	r.Increment()
	assert.Equal(t, 4*time.Second, r.Delay(), "counter=2 -> 2^2s")

	for i := 0; i < 10; i++ {
		r.Increment()
	}
	assert.Equal(t, 60*time.Second, r.Delay(), "decay must cap at max_interval (spec.md default 60s)")
}

func TestRateLimiter_ResetClearsCounter(t *testing.T) {
	r := NewRateLimiter(60 * time.Second)
	r.Increment()
	r.Increment()
	r.Reset()
	assert.Equal(t, time.Second, r.Delay())
}

func TestRateLimiter_DefaultMaxDelay(t *testing.T) {
	r := NewRateLimiter(0)
	for i := 0; i < 20; i++ {
		r.Increment()
	}
	assert.Equal(t, 60*time.Second, r.Delay(), "a non-positive maxDelay must fall back to the 60s default")
}

func TestRateLimiter_Sleep_InterruptibleByDone(t *testing.T) {
	r := NewRateLimiter(10 * time.Second)
	for i := 0; i < 10; i++ {
		r.Increment() // push delay well past the test timeout
	}

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	}()

	start := time.Now()
	r.Sleep(done)
	assert.Less(t, time.Since(start), time.Second, "Sleep must return promptly once done is closed")
}

func TestFixedRateLimiter_ZeroIntervalNeverBlocks(t *testing.T) {
	f := NewFixedRateLimiter(0)
	defer f.Stop()

	start := time.Now()
	f.Wait()
	f.Wait()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestFixedRateLimiter_PacesCalls(t *testing.T) {
	f := NewFixedRateLimiter(30 * time.Millisecond)
	defer f.Stop()

	f.Wait()
	start := time.Now()
	f.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
