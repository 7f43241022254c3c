package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-swap/internal/testutil"
)

func TestCheckerReportsEveryComponent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	_, client := testutil.Redis(t)

	c := NewChecker(testutil.Logger())
	c.AddCheck("database", NewDBChecker(db))
	c.AddCheck("redis", NewRedisChecker(client))
	c.AddCheck("telegram", NewTelegramChecker(nil))

	report := c.Check(context.Background())

	assert.False(t, report.Healthy)
	assert.Equal(t, "OK", report.Components["database"])
	assert.Equal(t, "OK", report.Components["redis"])
	assert.Contains(t, report.Components["telegram"], "not initialized")
	require.NoError(t, mock.ExpectationsWereMet())

	err = c.Ready(context.Background())
	require.Error(t, err)
	assert.Equal(t, "unhealthy: telegram", err.Error())
}

func TestCheckerRedisDown(t *testing.T) {
	mr, client := testutil.Redis(t)
	mr.Close()

	c := NewChecker(testutil.Logger())
	c.AddCheck("redis", NewRedisChecker(client))

	assert.False(t, c.Check(context.Background()).Healthy)
}

func TestHandlerStatusCodes(t *testing.T) {
	c := NewChecker(testutil.Logger())
	c.AddCheck("ok", CheckFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, report.Healthy)

	c.AddCheck("market", CheckFunc(func(context.Context) error { return errors.New("timeout") }))
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"market":"timeout"`)
}

func TestAddCheckIgnoresEmpty(t *testing.T) {
	c := NewChecker(nil)
	c.AddCheck("", CheckFunc(func(context.Context) error { return nil }))
	c.AddCheck("nil", nil)

	report := c.Check(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Components)
}
