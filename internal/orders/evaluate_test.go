package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldTriggerLimit(t *testing.T) {
	target := decimal.NewFromInt(50_000)

	testCases := []struct {
		name     string
		mode     Mode
		metric   Metric
		snap     Snapshot
		expected bool
	}{
		{name: "buy below target", mode: ModeBuy, metric: MetricMarketCap, snap: Snapshot{MarketCap: decimal.NewFromInt(49_999)}, expected: true},
		{name: "buy at target", mode: ModeBuy, metric: MetricMarketCap, snap: Snapshot{MarketCap: target}, expected: true},
		{name: "buy above target", mode: ModeBuy, metric: MetricMarketCap, snap: Snapshot{MarketCap: decimal.NewFromInt(50_001)}, expected: false},
		{name: "sell above target", mode: ModeSell, metric: MetricMarketCap, snap: Snapshot{MarketCap: decimal.NewFromInt(60_000)}, expected: true},
		{name: "sell at target", mode: ModeSell, metric: MetricMarketCap, snap: Snapshot{MarketCap: target}, expected: true},
		{name: "sell below target", mode: ModeSell, metric: MetricMarketCap, snap: Snapshot{MarketCap: decimal.NewFromInt(40_000)}, expected: false},
		{name: "price metric", mode: ModeSell, metric: MetricPrice, snap: Snapshot{Price: decimal.NewFromInt(50_000), MarketCap: decimal.NewFromInt(1)}, expected: true},
		{name: "unknown value never fires", mode: ModeBuy, metric: MetricMarketCap, snap: Snapshot{}, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			o := &Order{Kind: KindLimit, Mode: tc.mode, Metric: tc.metric, Target: target}
			assert.Equal(t, tc.expected, ShouldTriggerLimit(o, tc.snap))
		})
	}
}

func TestOccurrences(t *testing.T) {
	assert.Equal(t, 3, Occurrences(60, 20))
	assert.Equal(t, 2, Occurrences(50, 20))
	assert.Equal(t, 1, Occurrences(5, 5))
	assert.Equal(t, 0, Occurrences(10, 20))
	assert.Equal(t, 0, Occurrences(10, 0))
}

func TestAdvanceMovesFromPreviousDueTime(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{IntervalMinutes: 20, DurationMinutes: 60, Status: StatusPending}
	NewDCA(o, t0)

	require.Equal(t, 3, o.OccurrencesRemaining)
	assert.Equal(t, t0.Add(time.Hour), *o.EndsAt)
	assert.True(t, IsDue(o, t0))
	assert.False(t, IsDue(o, t0.Add(-time.Second)))

	status, upd := Advance(o)
	assert.Equal(t, StatusPending, status)
	assert.Equal(t, t0.Add(20*time.Minute), *upd.NextDueAt)
	assert.Equal(t, 1, *upd.OccurrencesDone)
	assert.Equal(t, 2, *upd.OccurrencesRemaining)

	o.OccurrencesRemaining = 1
	status, upd = Advance(o)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, 0, *upd.OccurrencesRemaining)
}
