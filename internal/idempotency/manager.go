// Package idempotency runs an operation at most once per key and replays its stored result.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned while another caller holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

const defaultLockTTL = 5 * time.Minute

// Operation is the work guarded by a key. Its result must be JSON encodable.
type Operation func(ctx context.Context) (any, error)

// Result is the outcome of Execute. Response holds the JSON encoded operation result.
type Result struct {
	Response  json.RawMessage
	FromCache bool
}

// Decode unmarshals the stored response into out.
func (r *Result) Decode(out any) error {
	if r == nil || len(r.Response) == 0 {
		return nil
	}
	return json.Unmarshal(r.Response, out)
}

// Manager executes operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

// NewManager creates a Manager on store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: defaultLockTTL,
		log:     log,
	}
}

// Execute runs fn unless key already completed, in which case the stored response is returned.
// Failed operations release the key so the caller may retry.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if record, err := m.store.Get(ctx, key); err != nil {
		return nil, err
	} else if record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	token, locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Status == StatusCompleted {
			return &Result{Response: record.Response, FromCache: true}, nil
		}
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	response, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode idempotent response: %w", err)
	}

	if err := m.store.Set(context.WithoutCancel(ctx), key, &Record{
		Status:   StatusCompleted,
		Response: response,
		StoredAt: time.Now().UTC(),
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{Response: response}, nil
}
