package ratelimit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/miniagent/agent-platform/internal/tenant"
)

// fixedWindow runs the whole read-reset-check-increment sequence server-side
// so concurrent workers never race on the same tenant's counter.
// KEYS[1] = tenant hash, ARGV = now (ms), window (ms), limit.
// Returns 1 on admission, 0 on rejection.
var fixedWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local count = tonumber(redis.call('HGET', KEYS[1], 'count'))
if not count then count = 0 end
local start = tonumber(redis.call('HGET', KEYS[1], 'window_start'))
if not start then start = now end

if now - start >= window then
  count = 0
  start = now
end

local admitted = 0
if count < limit then
  count = count + 1
  admitted = 1
end

redis.call('HSET', KEYS[1], 'count', count, 'window_start', start)
redis.call('PEXPIRE', KEYS[1], window * 2)
return admitted
`)

// RedisLimiter stores one counter hash per tenant in a shared Redis so every
// request-handling instance observes the same window state.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisLimiter(redisURL string) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return NewRedisLimiterWithClient(redis.NewClient(opt)), nil
}

func NewRedisLimiterWithClient(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, t tenant.Tenant) (bool, error) {
	key := "ratelimit:tenant:" + t.Name

	admitted, err := fixedWindow.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(),
		t.LimitWindow.Milliseconds(),
		t.RequestLimit,
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "rate limit check")
	}

	return admitted == 1, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
