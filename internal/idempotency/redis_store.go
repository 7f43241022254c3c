package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the Redis store writes.
const KeyPrefix = "idempotency:"

// StatusCompleted marks a record whose operation finished successfully.
const StatusCompleted = "completed"

// Record is a stored operation outcome.
type Record struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
	StoredAt time.Time       `json:"stored_at"`
}

// Store persists records and the per-key execution lock.
// Lock hands out a token; only its holder can release the lock.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (token string, ok bool, err error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key, token string) error
}

// releaseLock deletes the lock only while it still carries the caller's token.
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps JSON records under idempotency:<key> and the lock under idempotency:<key>:lock.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (string, bool, error) {
	token := uuid.NewString()
	acquired, err := s.client.SetNX(ctx, lockKey(key), token, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// an unreadable record is treated as absent so the operation can run again
		s.log.Warn("dropping corrupt idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}

	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	if err := s.client.Set(ctx, recordKey(key), raw, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseLock.Run(ctx, s.client, []string{lockKey(key)}, token).Err(); err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return KeyPrefix + key
}

func lockKey(key string) string {
	return KeyPrefix + key + ":lock"
}
