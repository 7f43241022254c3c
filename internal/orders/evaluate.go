package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the market state of a token at evaluation time.
type Snapshot struct {
	Price     decimal.Decimal
	MarketCap decimal.Decimal
}

// Value returns the snapshot value tracked by metric.
func (s Snapshot) Value(metric Metric) decimal.Decimal {
	if metric == MetricPrice {
		return s.Price
	}
	return s.MarketCap
}

// ShouldTriggerLimit reports whether a limit order fires against snap.
// Buy orders fire when the value drops to the target or below, sell orders when it reaches the target or above.
// Unknown (zero) values never fire.
func ShouldTriggerLimit(o *Order, snap Snapshot) bool {
	current := snap.Value(o.Metric)
	if !current.IsPositive() || !o.Target.IsPositive() {
		return false
	}

	if o.Mode == ModeSell {
		return current.GreaterThanOrEqual(o.Target)
	}
	return current.LessThanOrEqual(o.Target)
}

// IsDue reports whether a scheduled order has an occurrence to run at now.
func IsDue(o *Order, now time.Time) bool {
	if o.Status != StatusPending || o.OccurrencesRemaining <= 0 || o.NextDueAt == nil {
		return false
	}
	return !now.Before(*o.NextDueAt)
}

// Advance consumes one occurrence of a scheduled order, whatever its outcome.
// The next due time moves from the previous due time, not from now.
func Advance(o *Order) (Status, Update) {
	remaining := o.OccurrencesRemaining - 1
	if remaining < 0 {
		remaining = 0
	}
	done := o.OccurrencesDone + 1

	upd := Update{
		OccurrencesDone:      &done,
		OccurrencesRemaining: &remaining,
	}

	if o.NextDueAt != nil {
		next := o.NextDueAt.Add(time.Duration(o.IntervalMinutes) * time.Minute)
		upd.NextDueAt = &next
	}

	if remaining == 0 {
		return StatusCompleted, upd
	}
	return StatusPending, upd
}

func (u Update) apply(o *Order) {
	if u.LastError != nil {
		o.LastError = *u.LastError
	}
	if u.LastTxRef != nil {
		o.LastTxRef = *u.LastTxRef
	}
	if u.NextDueAt != nil {
		t := *u.NextDueAt
		o.NextDueAt = &t
	}
	if u.OccurrencesDone != nil {
		o.OccurrencesDone = *u.OccurrencesDone
	}
	if u.OccurrencesRemaining != nil {
		o.OccurrencesRemaining = *u.OccurrencesRemaining
	}
}
