// Package orders holds pending limit and scheduled orders, their stores and the trigger loop.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes limit orders from scheduled (DCA) orders.
type Kind string

const (
	KindLimit Kind = "limit"
	KindDCA   Kind = "dca"
)

// Status is the order lifecycle state. StatusTriggered is the claim taken before execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusTriggered Status = "triggered"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Mode is the swap direction.
type Mode string

const (
	ModeBuy  Mode = "buy"
	ModeSell Mode = "sell"
)

// Metric is what a limit target is compared with.
type Metric string

const (
	MetricMarketCap Metric = "market_cap"
	MetricPrice     Metric = "price"
)

// SizeKind tells whether Size is a base-asset amount or a percentage of the token balance.
type SizeKind string

const (
	SizeAmount  SizeKind = "amount"
	SizePercent SizeKind = "percent"
)

var (
	// ErrConflict is returned when a status compare-and-set finds a different status.
	ErrConflict = errors.New("order status changed concurrently")
	// ErrOrderNotFound is returned for unknown order ids.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists is returned when an order id is already taken.
	ErrOrderExists = errors.New("order already exists")
)

// Order is a persisted pending order.
type Order struct {
	ID            string          `db:"id"`
	UserID        int64           `db:"user_id"`
	ChatID        int64           `db:"chat_id"`
	TokenAddress  string          `db:"token_address"`
	TokenSymbol   string          `db:"token_symbol"`
	WalletAddress string          `db:"wallet_address"`
	Mode          Mode            `db:"mode"`
	Kind          Kind            `db:"kind"`
	SizeKind      SizeKind        `db:"size_kind"`
	Size          decimal.Decimal `db:"size"`
	Slippage      decimal.Decimal `db:"slippage"`

	Metric Metric          `db:"metric"`
	Target decimal.Decimal `db:"target"`

	IntervalMinutes      int        `db:"interval_minutes"`
	DurationMinutes      int        `db:"duration_minutes"`
	NextDueAt            *time.Time `db:"next_due_at"`
	EndsAt               *time.Time `db:"ends_at"`
	OccurrencesTotal     int        `db:"occurrences_total"`
	OccurrencesDone      int        `db:"occurrences_done"`
	OccurrencesRemaining int        `db:"occurrences_remaining"`

	Status    Status    `db:"status"`
	LastError string    `db:"last_error"`
	LastTxRef string    `db:"last_tx_ref"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Update carries the fields written together with a status change. Nil fields are left unchanged.
type Update struct {
	LastError            *string
	LastTxRef            *string
	NextDueAt            *time.Time
	OccurrencesDone      *int
	OccurrencesRemaining *int
}

// Store persists orders. UpdateStatus is a compare-and-set on the current status.
// CreateBatch stores every order or none of them.
type Store interface {
	Create(ctx context.Context, order *Order) error
	CreateBatch(ctx context.Context, orders []*Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListPending(ctx context.Context, kind Kind) ([]*Order, error)
	ListByUser(ctx context.Context, userID int64, statuses ...Status) ([]*Order, error)
	// ListTriggered returns orders of kind claimed for execution and not updated since before.
	ListTriggered(ctx context.Context, kind Kind, before time.Time) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, expected, next Status, upd Update) error
}

// Occurrences returns how many executions a schedule of durationMinutes every intervalMinutes performs.
func Occurrences(durationMinutes, intervalMinutes int) int {
	if intervalMinutes <= 0 || durationMinutes < intervalMinutes {
		return 0
	}
	return durationMinutes / intervalMinutes
}

// NewDCA fills the schedule fields of o for a start at now. The first occurrence is due immediately.
func NewDCA(o *Order, now time.Time) {
	o.Kind = KindDCA
	total := Occurrences(o.DurationMinutes, o.IntervalMinutes)
	due := now.UTC()
	ends := due.Add(time.Duration(o.DurationMinutes) * time.Minute)

	o.NextDueAt = &due
	o.EndsAt = &ends
	o.OccurrencesTotal = total
	o.OccurrencesDone = 0
	o.OccurrencesRemaining = total
}
