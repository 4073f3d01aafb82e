package vinted

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrDailyLimitReached is returned when the daily request budget is
// exhausted. The budget is self-imposed: the catalog API publishes no
// quota, but hammering it gets the session banned.
var ErrDailyLimitReached = errors.New("daily catalog request limit reached")

// RateLimiter combines a token bucket with a daily request budget that
// rolls over 24 hours after the first request of the window.
type RateLimiter struct {
	limiter  *rate.Limiter
	daily    atomic.Int64
	maxDaily int64

	mu      sync.Mutex
	resetAt time.Time
	nowFunc func() time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate,
// burst size, and daily budget. A maxDaily of 0 disables the budget.
func NewRateLimiter(perSecond float64, burst int, maxDaily int64, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until a request is allowed or the context is cancelled.
// Returns ErrDailyLimitReached without blocking when the budget is spent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.checkDailyReset()

	if r.maxDaily > 0 && r.daily.Load() >= r.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.daily.Load(), r.maxDaily)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	r.countRequest()
	return nil
}

// countRequest counts one request against the budget, arming the
// window on the first request so idle time never starts a window.
func (r *RateLimiter) countRequest() {
	r.mu.Lock()
	if r.resetAt.IsZero() {
		r.resetAt = r.nowFunc().Add(24 * time.Hour)
	}
	r.mu.Unlock()
	r.daily.Add(1)
}

func (r *RateLimiter) checkDailyReset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resetAt.IsZero() {
		return
	}
	if r.nowFunc().After(r.resetAt) {
		r.daily.Store(0)
		// Cleared, not re-armed: the next counted request starts the
		// new window.
		r.resetAt = time.Time{}
	}
}

// DailyCount returns the number of requests made in the current window.
func (r *RateLimiter) DailyCount() int64 {
	return r.daily.Load()
}

// Remaining returns how many requests are left in the current window, or
// -1 when no budget is configured.
func (r *RateLimiter) Remaining() int64 {
	if r.maxDaily == 0 {
		return -1
	}
	left := r.maxDaily - r.daily.Load()
	if left < 0 {
		return 0
	}
	return left
}

// ResetAt returns when the current daily window rolls over. Zero while
// no window is open, i.e. before the first request and after a
// rollover with no traffic since.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetAt
}
