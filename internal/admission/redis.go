package admission

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	redisclient "github.com/photorestore/restore-server-go/internal/redis"
)

// acquireScript increments the counter only while it is below the limit, so
// concurrent callers on different instances can never overshoot.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local count = tonumber(redis.call('GET', key) or '0')
if count >= limit then
    return {0, count}
end

count = redis.call('INCR', key)
redis.call('EXPIRE', key, ttl)
return {1, count}
`)

// releaseScript decrements the counter and deletes the key when it reaches
// zero. A missing key is left alone.
var releaseScript = redis.NewScript(`
local key = KEYS[1]

local count = tonumber(redis.call('GET', key) or '0')
if count <= 1 then
    redis.call('DEL', key)
    return 0
end

return redis.call('DECR', key)
`)

// RedisController shares in-flight counts between instances through redis.
// Counters expire after ttl so slots held by a crashed process do not throttle
// a session forever.
type RedisController struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisController(client *redis.Client, ttl time.Duration) *RedisController {
	return &RedisController{client: client, ttl: ttl}
}

func (c *RedisController) TryAcquire(ctx context.Context, token string, limit int) error {
	key := redisclient.AdmissionKey(token)

	result, err := acquireScript.Run(ctx, c.client, []string{key}, limit, int64(c.ttl.Seconds())).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("sessionToken", token).Msg("redis admission check failed, denying request")
		return apperrors.AdmissionUnavailable(err)
	}

	if len(result) != 2 {
		log.Warn().Str("sessionToken", token).Msg("unexpected redis admission result, denying request")
		return apperrors.Internal("unexpected admission result")
	}

	if result[0] != 1 {
		return apperrors.AdmissionDenied(limit)
	}
	return nil
}

func (c *RedisController) Release(ctx context.Context, token string) {
	key := redisclient.AdmissionKey(token)

	if err := releaseScript.Run(ctx, c.client, []string{key}).Err(); err != nil {
		// The key TTL reclaims the slot eventually.
		log.Error().Err(err).Str("sessionToken", token).Msg("redis admission release failed")
	}
}

// InFlight returns the number of slots currently held for token.
func (c *RedisController) InFlight(ctx context.Context, token string) (int, error) {
	n, err := c.client.Get(ctx, redisclient.AdmissionKey(token)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
