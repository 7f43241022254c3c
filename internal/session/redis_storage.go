package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Proton-105/himera-swap/internal/wallet"
)

const (
	stepKeyPattern  = "session:step:%d"
	stepScanPattern = "session:step:*"
)

// RedisStorage persists steps as JSON documents in Redis.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis-backed Storage. A zero ttl keeps steps until cleared.
func NewRedisStorage(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// Get returns the stored step or ErrStepNotFound when absent.
func (s *RedisStorage) Get(ctx context.Context, userID int64) (*Step, error) {
	data, err := s.client.Get(ctx, stepKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStepNotFound
		}

		s.log.Error("failed to get step from redis", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("get step: %w", err)
	}

	step, err := decodeStep(data)
	if err != nil {
		s.log.Error("failed to decode step", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, err
	}

	return step, nil
}

// Set saves step under the user's key, stamping UpdatedAt.
func (s *RedisStorage) Set(ctx context.Context, userID int64, step *Step) error {
	if step == nil {
		return errors.New("step is nil")
	}

	stored := step.Clone()
	stored.UserID = userID
	stored.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}

	if err := s.client.Set(ctx, stepKey(userID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save step in redis", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("set step: %w", err)
	}

	return nil
}

// Clear removes the stored step for the given user.
func (s *RedisStorage) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, stepKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear step", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("clear step: %w", err)
	}

	return nil
}

// All scans every stored step. Undecodable entries are skipped.
func (s *RedisStorage) All(ctx context.Context) ([]*Step, error) {
	var (
		cursor uint64
		result []*Step
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, stepScanPattern, 100).Result()
		if err != nil {
			s.log.Error("failed to scan steps", slog.Any("error", err))
			return nil, fmt.Errorf("scan steps: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return nil, fmt.Errorf("get step %s: %w", key, err)
			}

			step, err := decodeStep(data)
			if err != nil {
				s.log.Warn("skipping undecodable step", slog.String("key", key), slog.Any("error", err))
				continue
			}
			result = append(result, step)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func decodeStep(data []byte) (*Step, error) {
	var step Step
	if err := json.Unmarshal(data, &step); err != nil {
		return nil, fmt.Errorf("decode step: %w", err)
	}
	if step.WalletMap == nil {
		step.WalletMap = map[string]wallet.Record{}
	}
	return &step, nil
}

func stepKey(userID int64) string {
	return fmt.Sprintf(stepKeyPattern, userID)
}
