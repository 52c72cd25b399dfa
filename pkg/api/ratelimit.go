package api

import (
	"context"
	"sync"
	"time"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Wait blocks until it's safe to make another API call or ctx is done
	Wait(ctx context.Context) error
}

// SimpleRateLimiter enforces a minimum delay between calls made through one
// client. Callers sharing the client queue behind each other.
type SimpleRateLimiter struct {
	mu       sync.Mutex
	next     time.Time
	minDelay time.Duration
}

// NewSimpleRateLimiter creates a new simple rate limiter with minimum delay between calls
func NewSimpleRateLimiter(minDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
	}
}

// Wait reserves the next call slot and sleeps until it arrives
func (rl *SimpleRateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.minDelay)
	rl.mu.Unlock()

	return sleepContext(ctx, time.Until(slot))
}

// NoOpRateLimiter implements the RateLimiter interface but performs no rate limiting
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a rate limiter that performs no limiting
func NewNoOpRateLimiter() *NoOpRateLimiter {
	return &NoOpRateLimiter{}
}

// Wait only reports ctx cancellation
func (rl *NoOpRateLimiter) Wait(ctx context.Context) error {
	return ctx.Err()
}
