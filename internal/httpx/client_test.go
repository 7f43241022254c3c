package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
)

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"symbol":"TKN"}`))
	}))
	t.Cleanup(srv.Close)

	c := New("market", time.Second, map[string]string{"X-API-Key": "secret"})

	var out struct {
		Symbol string `json:"symbol"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "TKN", out.Symbol)
}

func TestServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := New("market", time.Second, nil).GetJSON(context.Background(), srv.URL, nil)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeTransient))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestClientErrorsCarryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown token", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	err := New("market", time.Second, nil).PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "unknown token", statusErr.Body)
	assert.False(t, apperrors.IsRetryable(err))
}
