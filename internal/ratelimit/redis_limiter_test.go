package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/Proton-105/himera-swap/pkg/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:allows", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:blocks", 2, time.Minute)
		assert.NoError(t, err)
		if i < 2 {
			assert.True(t, result.Allowed)
		} else {
			assert.False(t, result.Allowed)
			assert.Equal(t, 0, result.Remaining)
		}
	}

	count, err := client.ZCard(ctx, "ratelimit:test:blocks").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count, "rejected attempts must not be kept")
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "test:window", 2, time.Second)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	time.Sleep(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, "test:window", 2, time.Second)
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "k", 2, time.Minute)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "k", 2, time.Minute)
	assert.NoError(t, err)
	assert.False(t, result.Allowed)

	limiter.Cleanup(time.Nanosecond)
	time.Sleep(time.Millisecond)
	limiter.Cleanup(time.Nanosecond)

	result, err = limiter.Check(ctx, "k", 2, time.Minute)
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestAdaptiveLimiterFallsBackWithStricterLimit(t *testing.T) {
	limiter := NewAdaptiveLimiter(failingLimiter{}, NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "user:1", 4, time.Minute)
		assert.NoError(t, err)
	}

	_, err := limiter.Check(ctx, "user:1", 4, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRulesLimit(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 30, Window: "1m"},
		Submit:    config.RateLimitRule{Limit: 5, Window: "30s"},
		Whitelist: []int64{42},
	})

	limit, window, err := rules.Limit(RuleSubmit)
	assert.NoError(t, err)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 30*time.Second, window)

	_, _, err = rules.Limit("global")
	assert.Error(t, err)

	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))
	assert.Equal(t, "submit:7", Key(RuleSubmit, 7))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanerSweepsAgedOutWindows(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	now := time.Now()
	stale := float64(now.Add(-2 * time.Hour).UnixMilli())
	fresh := float64(now.UnixMilli())

	assert.NoError(t, client.ZAdd(ctx, KeyPrefix+"per_user:1", redis.Z{Score: stale, Member: "a"}).Err())
	assert.NoError(t, client.ZAdd(ctx, KeyPrefix+"per_user:2",
		redis.Z{Score: stale, Member: "a"}, redis.Z{Score: fresh, Member: "b"}).Err())
	assert.NoError(t, client.Set(ctx, "session:1", "x", 0).Err())

	memory := NewMemoryLimiter(testLogger())
	memory.now = func() time.Time { return now.Add(-2 * time.Hour) }
	_, err := memory.Check(ctx, "per_user:3", 5, time.Minute)
	assert.NoError(t, err)
	memory.now = time.Now

	c := NewCleaner(client, memory, time.Hour, testLogger(), time.Minute)

	assert.Equal(t, 1, c.Sweep(ctx))

	exists, err := client.Exists(ctx, KeyPrefix+"per_user:1", KeyPrefix+"per_user:2", "session:1").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), exists)

	left, err := client.ZCard(ctx, KeyPrefix+"per_user:2").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), left)

	assert.Empty(t, memory.buckets)
}

func TestRejectionReportsRetryAfter(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	limiter := NewRedisLimiter(client, testLogger()).(*RedisLimiter)
	base := time.Now()
	limiter.now = func() time.Time { return base }

	_, err := limiter.Check(ctx, "submit:9", 1, time.Minute)
	assert.NoError(t, err)

	limiter.now = func() time.Time { return base.Add(20 * time.Second) }
	result, err := limiter.Check(ctx, "submit:9", 1, time.Minute)
	assert.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, "redis", result.Backend)
	assert.Equal(t, 40, result.RetryAfter(base.Add(20*time.Second), time.Minute))
}

func TestResultRetryAfterFallsBackToWindow(t *testing.T) {
	var r *Result
	assert.Equal(t, 30, r.RetryAfter(time.Now(), 30*time.Second))
	assert.Equal(t, 1, (&Result{ResetAt: time.Now().Add(-time.Second)}).RetryAfter(time.Now(), time.Minute))
}
