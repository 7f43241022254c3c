package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces the sorted sets the Redis limiter writes.
const KeyPrefix = "ratelimit:"

// slidingWindow trims the window and admits the attempt only while under the limit.
// It replies {allowed, count}. Scores are unix milliseconds passed in as strings.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', key, ARGV[1], ARGV[4])
	redis.call('PEXPIRE', key, ARGV[5])
	return {1, count + 1}
end
return {0, count}
`)

// RedisLimiter implements Limiter with one sorted set per key, evaluated atomically by a script.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed Limiter implementation.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		now:    time.Now,
		log:    log,
	}
}

// Check admits one attempt for key unless limit attempts already fall inside window.
// Rejected attempts do not occupy the window.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{Allowed: false, ResetAt: now.Add(window), Backend: "redis"}, nil
	}

	redisKey := KeyPrefix + key
	reply, err := slidingWindow.Run(ctx, l.client, []string{redisKey},
		strconv.FormatInt(now.UnixMilli(), 10),
		"("+strconv.FormatInt(now.Add(-window).UnixMilli(), 10),
		limit,
		uuid.NewString(),
		strconv.FormatInt((2*window).Milliseconds(), 10),
	).Int64Slice()
	if err != nil {
		l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(reply) != 2 {
		return nil, errors.New("rate limiter script returned an unexpected reply")
	}

	result := &Result{
		Allowed:   reply[0] == 1,
		Remaining: max(limit-int(reply[1]), 0),
		ResetAt:   now.Add(window),
		Backend:   "redis",
	}

	if !result.Allowed {
		// the window frees up when its oldest attempt ages out
		oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) == 1 {
			result.ResetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
		}
	}

	return result, nil
}
