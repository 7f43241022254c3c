package orders

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/swap"
	"github.com/Proton-105/himera-swap/internal/wallet"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

// PriceSource provides market snapshots for tokens.
type PriceSource interface {
	Snapshot(ctx context.Context, tokenAddress string) (Snapshot, error)
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// MonitorConfig bounds the monitor's cadences and external calls.
type MonitorConfig struct {
	LimitInterval    time.Duration
	DCAInterval      time.Duration
	MarketTimeout    time.Duration
	ExecutionTimeout time.Duration
	StoreTimeout     time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.LimitInterval <= 0 {
		c.LimitInterval = 30 * time.Second
	}
	if c.DCAInterval <= 0 {
		c.DCAInterval = time.Minute
	}
	if c.MarketTimeout <= 0 {
		c.MarketTimeout = 8 * time.Second
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 45 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// Monitor evaluates pending orders and executes each occurrence at most once.
type Monitor struct {
	store    Store
	prices   PriceSource
	executor swap.Executor
	notifier Notifier
	cfg      MonitorConfig
	log      *slog.Logger
	now      func() time.Time
	retry    apperrors.Backoff

	limitRunning atomic.Bool
	dcaRunning   atomic.Bool
}

// NewMonitor wires a monitor. notifier may be nil.
func NewMonitor(store Store, prices PriceSource, executor swap.Executor, notifier Notifier, cfg MonitorConfig, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}

	return &Monitor{
		store:    store,
		prices:   prices,
		executor: executor,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		log:      log.With(slog.String("component", "order_monitor")),
		now:      time.Now,
		retry:    apperrors.DefaultBackoff,
	}
}

// Run drives both scans on independent tickers until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		m.loop(ctx, m.cfg.LimitInterval, m.ScanLimit)
	}()
	go func() {
		defer wg.Done()
		m.loop(ctx, m.cfg.DCAInterval, m.ScanDCA)
	}()

	wg.Wait()
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, scan func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := scan(ctx); err != nil {
				m.log.Error("order scan failed", slog.Any("error", err))
			}
		}
	}
}

// ScanLimit evaluates every pending limit order against one snapshot per token.
// A scan that starts while the previous one is still running is skipped.
func (m *Monitor) ScanLimit(ctx context.Context) error {
	if !m.limitRunning.CompareAndSwap(false, true) {
		m.log.Debug("limit scan still running, skipping tick")
		return nil
	}
	defer m.limitRunning.Store(false)

	m.reconcile(ctx, KindLimit)

	started := m.now()
	defer func() { metrics.ObserveScan(string(KindLimit), time.Since(started)) }()

	pending, err := m.listPending(ctx, KindLimit)
	if err != nil {
		return err
	}

	for token, group := range groupByToken(pending) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snap, err := m.snapshot(ctx, token)
		if err != nil {
			m.log.Warn("market snapshot failed", slog.String("token_address", token), slog.Any("error", err))
			for range group {
				metrics.RecordOrderEvaluation(string(KindLimit), "no_market")
			}
			continue
		}

		for _, o := range group {
			if !ShouldTriggerLimit(o, snap) {
				metrics.RecordOrderEvaluation(string(KindLimit), "waiting")
				continue
			}
			metrics.RecordOrderEvaluation(string(KindLimit), "triggered")
			m.executeLimit(ctx, o)
		}
	}

	return nil
}

// ScanDCA runs every scheduled order whose next occurrence is due.
func (m *Monitor) ScanDCA(ctx context.Context) error {
	if !m.dcaRunning.CompareAndSwap(false, true) {
		m.log.Debug("dca scan still running, skipping tick")
		return nil
	}
	defer m.dcaRunning.Store(false)

	m.reconcile(ctx, KindDCA)

	started := m.now()
	defer func() { metrics.ObserveScan(string(KindDCA), time.Since(started)) }()

	pending, err := m.listPending(ctx, KindDCA)
	if err != nil {
		return err
	}

	now := m.now()
	for _, o := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsDue(o, now) {
			metrics.RecordOrderEvaluation(string(KindDCA), "waiting")
			continue
		}
		metrics.RecordOrderEvaluation(string(KindDCA), "due")
		m.executeDCA(ctx, o)
	}

	return nil
}

func (m *Monitor) executeLimit(ctx context.Context, o *Order) {
	if !m.claim(ctx, o) {
		return
	}

	res, execErr := m.execute(ctx, o, 0)

	next := StatusCompleted
	var upd Update
	if execErr != nil {
		next = StatusFailed
		msg := execErr.Error()
		upd.LastError = &msg
	} else {
		upd.LastTxRef = &res.TxRef
	}

	if err := m.record(ctx, o, next, upd); err != nil {
		return
	}
	metrics.RecordOrderExecution(string(KindLimit), string(next))

	if execErr != nil {
		m.notify(ctx, o.ChatID, fmt.Sprintf("❌ Limit %s %s failed: %s", o.Mode, html.EscapeString(o.TokenSymbol), html.EscapeString(execErr.Error())))
		return
	}
	m.notify(ctx, o.ChatID, fmt.Sprintf("✅ Limit %s %s executed on %s\nTx: %s", o.Mode, html.EscapeString(o.TokenSymbol), wallet.ShortAddress(o.WalletAddress), html.EscapeString(res.TxRef)))
}

func (m *Monitor) executeDCA(ctx context.Context, o *Order) {
	if !m.claim(ctx, o) {
		return
	}

	res, execErr := m.execute(ctx, o, o.OccurrencesDone)

	next, upd := Advance(o)
	if execErr != nil {
		msg := execErr.Error()
		upd.LastError = &msg
	} else {
		upd.LastTxRef = &res.TxRef
	}

	if err := m.record(ctx, o, next, upd); err != nil {
		return
	}

	if execErr != nil {
		metrics.RecordOrderExecution(string(KindDCA), "failed")
		m.log.Warn("dca occurrence failed",
			slog.String("order_id", o.ID),
			slog.Int("occurrence", o.OccurrencesDone+1),
			slog.Any("error", execErr),
		)
		return
	}

	metrics.RecordOrderExecution(string(KindDCA), "completed")
	m.notify(ctx, o.ChatID, fmt.Sprintf("✅ DCA %s %s %d/%d executed on %s\nTx: %s",
		o.Mode, html.EscapeString(o.TokenSymbol), *upd.OccurrencesDone, o.OccurrencesTotal,
		wallet.ShortAddress(o.WalletAddress), html.EscapeString(res.TxRef)))
}

// claim moves the order from pending to triggered. It reports false when someone else resolved it first.
func (m *Monitor) claim(ctx context.Context, o *Order) bool {
	storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	err := m.store.UpdateStatus(storeCtx, o.ID, StatusPending, StatusTriggered, Update{})
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrConflict), errors.Is(err, ErrOrderNotFound):
		metrics.RecordOrderEvaluation(string(o.Kind), "conflict")
		m.log.Info("order claimed elsewhere, skipping", slog.String("order_id", o.ID))
	default:
		m.log.Error("failed to claim order", slog.String("order_id", o.ID), slog.Any("error", err))
	}
	return false
}

func (m *Monitor) execute(ctx context.Context, o *Order, occurrence int) (*swap.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, m.cfg.ExecutionTimeout)
	defer cancel()

	res, err := m.executor.ExecuteSwap(execCtx, swap.Request{
		UserID:        o.UserID,
		WalletAddress: o.WalletAddress,
		TokenAddress:  o.TokenAddress,
		Mode:          string(o.Mode),
		SizeKind:      string(o.SizeKind),
		Size:          o.Size,
		Slippage:      o.Slippage,
		ClientRef:     fmt.Sprintf("%s:%d", o.ID, occurrence),
	})
	if err == nil && res == nil {
		res = &swap.Result{}
	}
	return res, err
}

// record writes the outcome of a claimed order, retrying store failures. It survives cancellation
// of the scan context so that an executed swap is never left in the triggered state by a shutdown.
func (m *Monitor) record(ctx context.Context, o *Order, next Status, upd Update) error {
	base := context.WithoutCancel(ctx)

	err := m.retry.Do(base, func() error {
		storeCtx, cancel := context.WithTimeout(base, m.cfg.StoreTimeout)
		defer cancel()

		err := m.store.UpdateStatus(storeCtx, o.ID, StatusTriggered, next, upd)
		if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrOrderNotFound) {
			return err
		}
		return apperrors.NewDatabaseError(err)
	})
	if err != nil {
		m.log.Error("failed to record order outcome",
			slog.String("order_id", o.ID),
			slog.String("status", string(next)),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

// staleAfter is how long an order may stay triggered before its outcome is considered lost.
func (m *Monitor) staleAfter() time.Duration {
	d := m.cfg.ExecutionTimeout + m.cfg.StoreTimeout
	for n := 1; n <= m.retry.Attempts; n++ {
		d += m.cfg.StoreTimeout + m.retry.Delay(n)
	}
	return d
}

// reconcile resolves orders left triggered because their outcome was never recorded.
// Limit orders fail; scheduled orders give up the occurrence and keep their schedule.
func (m *Monitor) reconcile(ctx context.Context, kind Kind) {
	storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	stale, err := m.store.ListTriggered(storeCtx, kind, m.now().Add(-m.staleAfter()))
	cancel()
	if err != nil {
		m.log.Warn("list stale orders", slog.String("kind", string(kind)), slog.Any("error", err))
		return
	}

	unknown := "outcome unknown"
	for _, o := range stale {
		next, upd := StatusFailed, Update{}
		if o.Kind == KindDCA {
			next, upd = Advance(o)
		}
		upd.LastError = &unknown

		storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
		err := m.store.UpdateStatus(storeCtx, o.ID, StatusTriggered, next, upd)
		cancel()
		if err != nil {
			if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrOrderNotFound) {
				m.log.Warn("reconcile stale order", slog.String("order_id", o.ID), slog.Any("error", err))
			}
			continue
		}

		metrics.RecordOrderExecution(string(o.Kind), "unknown")
		m.log.Warn("stale triggered order reconciled",
			slog.String("order_id", o.ID),
			slog.String("kind", string(o.Kind)),
			slog.String("status", string(next)),
		)
		if o.Kind == KindLimit {
			m.notify(ctx, o.ChatID, fmt.Sprintf("⚠️ Limit %s %s on %s: outcome unknown, check the wallet",
				o.Mode, html.EscapeString(o.TokenSymbol), wallet.ShortAddress(o.WalletAddress)))
		}
	}
}

func (m *Monitor) listPending(ctx context.Context, kind Kind) ([]*Order, error) {
	storeCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	list, err := m.store.ListPending(storeCtx, kind)
	if err != nil {
		return nil, fmt.Errorf("list pending %s orders: %w", kind, err)
	}
	return list, nil
}

func (m *Monitor) snapshot(ctx context.Context, token string) (Snapshot, error) {
	marketCtx, cancel := context.WithTimeout(ctx, m.cfg.MarketTimeout)
	defer cancel()

	return m.prices.Snapshot(marketCtx, token)
}

func (m *Monitor) notify(ctx context.Context, chatID int64, text string) {
	if m.notifier == nil || chatID == 0 {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.StoreTimeout)
	defer cancel()

	if err := m.notifier.Notify(notifyCtx, chatID, text); err != nil {
		m.log.Warn("order notification failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func groupByToken(list []*Order) map[string][]*Order {
	groups := make(map[string][]*Order)
	for _, o := range list {
		groups[o.TokenAddress] = append(groups[o.TokenAddress], o)
	}
	return groups
}
