// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// AssertNoError fails the test immediately when err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	require.NoError(t, err)
}

// AssertError fails the test immediately when err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	require.Error(t, err)
}

// AssertEqual fails the test immediately when want and got differ.
func AssertEqual(t testing.TB, want, got any) {
	t.Helper()
	require.Equal(t, want, got)
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Redis starts a miniredis server and returns a client connected to it. Both are closed on cleanup.
func Redis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}
