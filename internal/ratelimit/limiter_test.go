package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func TestLimiter_FixedWindowSequence(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(clock, time.Hour)
	defer store.Close()
	limiter := NewLimiter(store, clock)
	policy := Policy{Window: time.Second, MaxRequests: 3}
	ctx := context.Background()

	for _, wantRemaining := range []int{2, 1, 0} {
		res, err := limiter.Consume(ctx, "cart:1.2.3.4", policy)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, wantRemaining, res.Remaining)
		clock.Advance(100 * time.Millisecond)
	}

	res, err := limiter.Consume(ctx, "cart:1.2.3.4", policy)
	require.Error(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	var rlErr *domain.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.LessOrEqual(t, rlErr.RetryAfterSeconds, 1)
	assert.GreaterOrEqual(t, rlErr.RetryAfterSeconds, 1)
	assert.ErrorIs(t, err, domain.ErrRateLimitExceeded)

	clock.Advance(time.Second)

	res, err = limiter.Consume(ctx, "cart:1.2.3.4", policy)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(clock, time.Hour)
	defer store.Close()
	limiter := NewLimiter(store, clock)
	policy := Policy{Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	_, err := limiter.Consume(ctx, Key(ClassCart, "10.0.0.1"), policy)
	require.NoError(t, err)
	_, err = limiter.Consume(ctx, Key(ClassWishlist, "10.0.0.1"), policy)
	require.NoError(t, err)
	_, err = limiter.Consume(ctx, Key(ClassCart, "10.0.0.2"), policy)
	require.NoError(t, err)

	_, err = limiter.Consume(ctx, Key(ClassCart, "10.0.0.1"), policy)
	assert.ErrorIs(t, err, domain.ErrRateLimitExceeded)
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(clock, time.Hour)
	defer store.Close()
	limiter := NewLimiter(store, clock)
	policy := Policy{Window: 15 * time.Minute, MaxRequests: 1}
	ctx := context.Background()

	_, err := limiter.Consume(ctx, "auth:ip", policy)
	require.NoError(t, err)

	clock.Advance(10*time.Minute + 500*time.Millisecond)
	_, err = limiter.Consume(ctx, "auth:ip", policy)

	var rlErr *domain.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 300, rlErr.RetryAfterSeconds)
}

func TestLimiter_InvalidPolicy(t *testing.T) {
	store := NewMemoryStore(nil, time.Hour)
	defer store.Close()
	limiter := NewLimiter(store, nil)

	_, err := limiter.Consume(context.Background(), "k", Policy{})
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestLimiter_StoreError(t *testing.T) {
	limiter := NewLimiter(failingStore{}, nil)

	_, err := limiter.Consume(context.Background(), "k", Policy{Window: time.Second, MaxRequests: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimitExceeded)
}

func TestLimiter_ConcurrentIncrementsAreAtomic(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(clock, time.Hour)
	defer store.Close()
	limiter := NewLimiter(store, clock)
	policy := Policy{Window: time.Minute, MaxRequests: 50}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Consume(context.Background(), "fetch:ip", policy); err == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, Policy{Window: 15 * time.Minute, MaxRequests: 10}, p[ClassAuth])
	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 30}, p[ClassCart])
	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 30}, p[ClassWishlist])
	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 60}, p[ClassFetch])
}
