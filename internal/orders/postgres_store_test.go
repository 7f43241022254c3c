package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_UpdateStatusCompareAndSet(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
		WithArgs("o-1", StatusPending, StatusTriggered, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateStatus(ctx, "o-1", StatusPending, StatusTriggered, Update{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatusConflict(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.UpdateStatus(ctx, "o-1", StatusPending, StatusCanceled, Update{})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatusNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.UpdateStatus(context.Background(), "missing", StatusPending, StatusCanceled, Update{})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresStore_ListPending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "user_id", "chat_id", "token_address", "token_symbol", "wallet_address", "mode", "kind",
		"size_kind", "size", "slippage", "metric", "target", "interval_minutes", "duration_minutes",
		"next_due_at", "ends_at", "occurrences_total", "occurrences_done", "occurrences_remaining",
		"status", "last_error", "last_tx_ref", "created_at", "updated_at",
	}
	rows := sqlmock.NewRows(columns).AddRow(
		"o-1", int64(1), int64(10), tokenA, "TKN", walletX, "buy", "limit",
		"amount", "0.1", "1", "market_cap", "50000", 0, 0,
		nil, nil, 0, 0, 0,
		"pending", "", "", now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE status = $1 AND kind = $2")).
		WithArgs(StatusPending, KindLimit).
		WillReturnRows(rows)

	list, err := store.ListPending(context.Background(), KindLimit)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o-1", list[0].ID)
	assert.Equal(t, MetricMarketCap, list[0].Metric)
	assert.Equal(t, "50000", list[0].Target.String())
	assert.Nil(t, list[0].NextDueAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresStore_CreateBatchCommits(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	batch := []*Order{limitOrder(tokenA, ModeBuy, 100), limitOrder(tokenB, ModeBuy, 200)}
	require.NoError(t, store.CreateBatch(context.Background(), batch))

	for _, o := range batch {
		assert.NotEmpty(t, o.ID)
		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, now, o.CreatedAt)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateBatchRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	batch := []*Order{limitOrder(tokenA, ModeBuy, 100), limitOrder(tokenB, ModeBuy, 200)}
	err := store.CreateBatch(context.Background(), batch)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTriggeredFiltersByAge(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND kind = $2 AND updated_at < $3")).
		WithArgs(StatusTriggered, KindDCA, cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("o-9", "triggered"))

	list, err := store.ListTriggered(context.Background(), KindDCA, cutoff)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o-9", list[0].ID)
	assert.Equal(t, StatusTriggered, list[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
