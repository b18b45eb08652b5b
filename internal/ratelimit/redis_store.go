package ratelimit

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// incrementScript bumps the counter and starts the window on first use.
// It returns the new count and the remaining window in milliseconds.
var incrementScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisStore shares fixed-window counters between server instances.
// Key expiry takes the place of the in-memory sweep.
type RedisStore struct {
	client redis.Scripter
	clock  domain.Clock
}

func NewRedisStore(client redis.Scripter, clock domain.Clock) *RedisStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &RedisStore{client: client, clock: clock}
}

func (s *RedisStore) Increment(ctx context.Context, key string, size time.Duration) (int, time.Time, error) {
	vals, err := incrementScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, size.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to run increment script: %w", err)
	}
	if len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected increment script reply: %v", vals)
	}

	resetAt := s.clock.Now().Add(time.Duration(vals[1]) * time.Millisecond)
	return int(vals[0]), resetAt, nil
}
