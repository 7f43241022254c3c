// Package usercache keeps recently seen users in Redis so the auth middleware skips Postgres.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/himera-swap/internal/domain"
)

const (
	keyPrefix  = "user:profile:"
	DefaultTTL = time.Hour
)

// Cache stores user profiles as JSON. Every hit pushes the expiry out by ttl,
// so active users stay cached while idle ones age out.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns a cache on client. A non-positive ttl falls back to DefaultTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached profile and refreshes its expiry. A miss is (nil, nil).
func (c *Cache) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.GetEx(ctx, key(telegramID), c.ttl).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("usercache: get %d: %w", telegramID, err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		// stale layout from an older release; drop it and let the caller reload
		_ = c.client.Del(ctx, key(telegramID)).Err()
		return nil, nil
	}

	return &user, nil
}

// Set caches user for the configured ttl.
func (c *Cache) Set(ctx context.Context, user *domain.User) error {
	if c == nil || c.client == nil || user == nil {
		return nil
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("usercache: encode %d: %w", user.TelegramID, err)
	}

	if err := c.client.Set(ctx, key(user.TelegramID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("usercache: set %d: %w", user.TelegramID, err)
	}

	return nil
}

// Invalidate drops the cached profile.
func (c *Cache) Invalidate(ctx context.Context, telegramID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, key(telegramID)).Err(); err != nil {
		return fmt.Errorf("usercache: invalidate %d: %w", telegramID, err)
	}

	return nil
}

func key(telegramID int64) string {
	return keyPrefix + strconv.FormatInt(telegramID, 10)
}
