package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cleanerScanCount = 100

// Cleaner removes idempotency keys that lost their expiry or outlive maxTTL.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
	maxTTL   time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxTTL time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
		maxTTL:   maxTTL,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Cleanup(ctx); removed > 0 {
				c.log.Info("stale idempotency keys removed", slog.Int("keys", removed))
			}
		}
	}
}

// Cleanup runs a single pass and returns the number of deleted keys.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, KeyPrefix+"*", cleanerScanCount).Result()
		if err != nil {
			c.log.Error("idempotency cleaner scan failed", slog.Any("error", err))
			return removed
		}
		if len(keys) > 0 {
			removed += c.sweep(ctx, keys)
		}

		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// sweep reads the TTLs of one scan page in a pipeline and deletes the stale keys in one call.
func (c *Cleaner) sweep(ctx context.Context, keys []string) int {
	pipe := c.client.Pipeline()
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		ttls[i] = pipe.TTL(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("failed to read idempotency key ttls", slog.Any("error", err))
		return 0
	}

	var stale []string
	for i, cmd := range ttls {
		ttl, err := cmd.Result()
		if err != nil {
			continue
		}
		if ttl == -1 || (c.maxTTL > 0 && ttl > c.maxTTL) {
			stale = append(stale, keys[i])
		}
	}
	if len(stale) == 0 {
		return 0
	}

	deleted, err := c.client.Del(ctx, stale...).Result()
	if err != nil {
		c.log.Warn("failed to delete stale idempotency keys", slog.Int("keys", len(stale)), slog.Any("error", err))
		return 0
	}
	return int(deleted)
}
