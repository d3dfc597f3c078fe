package client

import (
	"context"
	"sync"
	"time"
)

const acquirePoll = 20 * time.Millisecond

// RateLimiter is a token bucket shared by every request the client makes.
// Refill is computed from the wall-clock delta on each acquire.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

// NewRateLimiter creates a bucket holding capacity tokens that refills at
// perSecond tokens per second. The bucket starts full.
func NewRateLimiter(capacity int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     perSecond,
		last:     time.Now(),
	}
}

// Acquire blocks until a token is available or ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if r.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquirePoll):
		}
	}
}

func (r *RateLimiter) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens += now.Sub(r.last).Seconds() * r.rate
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	r.last = now

	if r.tokens < 1 {
		return false
	}
	r.tokens--
	return true
}
