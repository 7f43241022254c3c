package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, chat_id, token_address, token_symbol, wallet_address, mode, kind,
	size_kind, size, slippage, metric, target, interval_minutes, duration_minutes, next_due_at, ends_at,
	occurrences_total, occurrences_done, occurrences_remaining, status, last_error, last_tx_ref,
	created_at, updated_at`

// PostgresStore persists orders in the orders table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Store backed by db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts order, assigning an id and pending status when missing.
func (s *PostgresStore) Create(ctx context.Context, order *Order) error {
	return insertOrder(ctx, s.db, order)
}

// CreateBatch inserts all orders in one transaction.
func (s *PostgresStore) CreateBatch(ctx context.Context, batch []*Order) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, order := range batch {
		if err = insertOrder(ctx, tx, order); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order batch: %w", err)
	}
	return nil
}

func insertOrder(ctx context.Context, ext sqlx.ExtContext, order *Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = StatusPending
	}

	query := `
	INSERT INTO orders (
		id, user_id, chat_id, token_address, token_symbol, wallet_address, mode, kind,
		size_kind, size, slippage, metric, target, interval_minutes, duration_minutes,
		next_due_at, ends_at, occurrences_total, occurrences_done, occurrences_remaining, status
	) VALUES (
		:id, :user_id, :chat_id, :token_address, :token_symbol, :wallet_address, :mode, :kind,
		:size_kind, :size, :slippage, :metric, :target, :interval_minutes, :duration_minutes,
		:next_due_at, :ends_at, :occurrences_total, :occurrences_done, :occurrences_remaining, :status
	) RETURNING created_at, updated_at
	`

	rows, err := sqlx.NamedQueryContext(ctx, ext, query, order)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create order %s: %w", order.ID, ErrOrderExists)
		}
		return fmt.Errorf("create order: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
			return fmt.Errorf("scan created order: %w", err)
		}
	}

	return rows.Err()
}

// Get loads an order by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var order Order
	if err := s.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	return &order, nil
}

// ListPending returns pending orders of kind, oldest first.
func (s *PostgresStore) ListPending(ctx context.Context, kind Kind) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND kind = $2 ORDER BY created_at, id`

	var list []*Order
	if err := s.db.SelectContext(ctx, &list, query, StatusPending, kind); err != nil {
		return nil, fmt.Errorf("list pending %s orders: %w", kind, err)
	}

	return list, nil
}

// ListByUser returns the user's orders, optionally filtered by status, oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID int64, statuses ...Status) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []interface{}{userID}

	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(values))
	}
	query += ` ORDER BY created_at, id`

	var list []*Order
	if err := s.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}

	return list, nil
}

// ListTriggered returns triggered orders of kind last updated before the given time.
func (s *PostgresStore) ListTriggered(ctx context.Context, kind Kind, before time.Time) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	WHERE status = $1 AND kind = $2 AND updated_at < $3 ORDER BY created_at, id`

	var list []*Order
	if err := s.db.SelectContext(ctx, &list, query, StatusTriggered, kind, before); err != nil {
		return nil, fmt.Errorf("list triggered %s orders: %w", kind, err)
	}

	return list, nil
}

// UpdateStatus moves the order from expected to next in a single conditional update.
// It returns ErrConflict when the stored status is not expected and ErrOrderNotFound for unknown ids.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, expected, next Status, upd Update) error {
	query := `
	UPDATE orders SET
		status = $3,
		last_error = COALESCE($4, last_error),
		last_tx_ref = COALESCE($5, last_tx_ref),
		next_due_at = COALESCE($6, next_due_at),
		occurrences_done = COALESCE($7, occurrences_done),
		occurrences_remaining = COALESCE($8, occurrences_remaining),
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	`

	res, err := s.db.ExecContext(ctx, query,
		id, expected, next,
		upd.LastError, upd.LastTxRef, upd.NextDueAt, upd.OccurrencesDone, upd.OccurrencesRemaining,
	)
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check order %s: %w", id, err)
	}
	if !exists {
		return ErrOrderNotFound
	}

	return ErrConflict
}
