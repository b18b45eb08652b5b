// Package ratelimit implements fixed-window request quotas keyed by
// action class and client identity.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"storefront/internal/domain"
)

// Policy is the quota for one action class.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// Result describes the state of a key after a call to Consume.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Store keeps one counter per key. Increment must be atomic per key: a new
// window starts with count 1 whenever now is past the stored reset time.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Limiter applies policies on top of a Store.
type Limiter struct {
	store Store
	clock domain.Clock
}

// NewLimiter creates a limiter. A nil clock uses the wall clock.
func NewLimiter(store Store, clock domain.Clock) *Limiter {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Limiter{store: store, clock: clock}
}

// Consume counts one request against key. When the quota is exhausted it
// returns the result together with a *domain.RateLimitError.
func (l *Limiter) Consume(ctx context.Context, key string, policy Policy) (Result, error) {
	if policy.MaxRequests <= 0 || policy.Window <= 0 {
		return Result{}, fmt.Errorf("invalid rate limit policy for %q", key)
	}

	count, resetAt, err := l.store.Increment(ctx, key, policy.Window)
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	res := Result{
		Allowed:   count <= policy.MaxRequests,
		Limit:     policy.MaxRequests,
		Remaining: max(policy.MaxRequests-count, 0),
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		return res, &domain.RateLimitError{RetryAfterSeconds: res.RetryAfter(l.clock.Now())}
	}
	return res, nil
}
