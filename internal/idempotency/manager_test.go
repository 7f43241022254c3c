package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/testutil"
)

type payload struct {
	Orders []string `json:"orders"`
}

func newManager(t *testing.T) (Manager, Store) {
	t.Helper()
	_, client := testutil.Redis(t)
	store := NewRedisStore(client, testutil.Logger())
	return NewManager(store, testutil.Logger()), store
}

func TestExecuteRunsOnceAndReplays(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	calls := 0

	op := func(context.Context) (any, error) {
		calls++
		return payload{Orders: []string{"a", "b"}}, nil
	}

	first, err := m.Execute(ctx, "submit:1", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := m.Execute(ctx, "submit:1", time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, calls)

	var got payload
	require.NoError(t, second.Decode(&got))
	assert.Equal(t, []string{"a", "b"}, got.Orders)
}

func TestExecuteFailureReleasesKey(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	res, err := m.Execute(ctx, "k", time.Hour, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}

func TestExecuteWhileLocked(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	_, locked, err := store.Lock(ctx, "busy", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.Execute(ctx, "busy", time.Hour, func(context.Context) (any, error) {
		t.Fatal("operation must not run while locked")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestCleanerRemovesKeysWithoutExpiry(t *testing.T) {
	mr, client := testutil.Redis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "idempotency:stale", "1", 0).Err())
	require.NoError(t, client.Set(ctx, "idempotency:fresh", "1", time.Hour).Err())
	require.NoError(t, client.Set(ctx, "other", "1", 0).Err())

	removed := NewCleaner(client, testutil.Logger(), time.Minute, 25*time.Hour).Cleanup(ctx)

	assert.Equal(t, 1, removed)
	assert.False(t, mr.Exists("idempotency:stale"))
	assert.True(t, mr.Exists("idempotency:fresh"))
	assert.True(t, mr.Exists("other"))
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("submit", 1, "limit", "a0.1")

	assert.Equal(t, key, GenerateKey("submit", 1, "limit", "a0.1"))
	assert.True(t, strings.HasPrefix(key, "submit:"))
	assert.Len(t, key, len("submit:")+64)
	assert.NotEqual(t, key, GenerateKey("submit", 1, "dca", "a0.1"))
	assert.NotEqual(t, GenerateKey("s", "ab", "c"), GenerateKey("s", "a", "bc"))
}

func TestReleaseLockRequiresToken(t *testing.T) {
	mr, client := testutil.Redis(t)
	store := NewRedisStore(client, testutil.Logger())
	ctx := context.Background()

	token, ok, err := store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseLock(ctx, "k", "someone-else"))
	assert.True(t, mr.Exists("idempotency:k:lock"))

	require.NoError(t, store.ReleaseLock(ctx, "k", token))
	assert.False(t, mr.Exists("idempotency:k:lock"))
}

func TestCorruptRecordIsIgnored(t *testing.T) {
	mr, client := testutil.Redis(t)
	store := NewRedisStore(client, testutil.Logger())
	require.NoError(t, mr.Set("idempotency:bad", "{not json"))

	record, err := store.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.Nil(t, record)
}
