package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cleanerScanCount = 100

// Cleaner drops aged-out attempts from the Redis windows and idle buckets from the in-memory fallback.
// Window keys carry an expiry already; the sweep covers keys whose expiry was lost.
type Cleaner struct {
	redisClient *redis.Client
	memory      *MemoryLimiter
	maxAge      time.Duration
	interval    time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewCleaner constructs a Cleaner. Entries older than maxAge are removed; memory may be nil.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, maxAge time.Duration, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}

	return &Cleaner{
		redisClient: client,
		memory:      memory,
		maxAge:      maxAge,
		interval:    interval,
		now:         time.Now,
		log:         log,
	}
}

// Run sweeps every interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns the number of Redis keys deleted.
func (c *Cleaner) Sweep(ctx context.Context) int {
	if c.memory != nil {
		if dropped := c.memory.Cleanup(c.maxAge); dropped > 0 {
			c.log.Debug("idle rate limit buckets dropped", slog.Int("buckets", dropped))
		}
	}
	if c.redisClient == nil || ctx.Err() != nil {
		return 0
	}

	cutoff := "(" + strconv.FormatInt(c.now().Add(-c.maxAge).UnixMilli(), 10)
	removed := 0

	iter := c.redisClient.Scan(ctx, 0, KeyPrefix+"*", cleanerScanCount).Iterator()
	var page []string
	flush := func() {
		removed += c.trim(ctx, page, cutoff)
		page = page[:0]
	}
	for iter.Next(ctx) {
		page = append(page, iter.Val())
		if len(page) == cleanerScanCount {
			flush()
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Error("rate limit scan failed", slog.Any("error", err))
	}
	if len(page) > 0 {
		flush()
	}

	if removed > 0 {
		c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", removed))
	}
	return removed
}

// trim removes attempts older than cutoff from keys in one pipeline and deletes the emptied keys.
func (c *Cleaner) trim(ctx context.Context, keys []string, cutoff string) int {
	pipe := c.redisClient.Pipeline()
	cards := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		cards[i] = pipe.ZCard(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("rate limit cleanup pipeline failed", slog.Int("keys", len(keys)), slog.Any("error", err))
		return 0
	}

	var empty []string
	for i, card := range cards {
		if n, err := card.Result(); err == nil && n == 0 {
			empty = append(empty, keys[i])
		}
	}
	if len(empty) == 0 {
		return 0
	}

	deleted, err := c.redisClient.Del(ctx, empty...).Result()
	if err != nil {
		c.log.Warn("failed to delete empty rate limit keys", slog.Any("error", err))
		return 0
	}
	return int(deleted)
}
