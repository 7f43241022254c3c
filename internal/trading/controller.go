// Package trading drives the interactive conversation: load the step, apply the event, render, save.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/himera-swap/internal/bot/view"
	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/i18n"
	"github.com/Proton-105/himera-swap/internal/idempotency"
	"github.com/Proton-105/himera-swap/internal/market"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/render"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/swap"
	"github.com/Proton-105/himera-swap/internal/wallet"
)

// WalletSource lists a user's wallets in display order.
type WalletSource interface {
	ListWallets(ctx context.Context, userID int64) ([]wallet.Record, error)
}

// SubmitLimiter throttles order placement. A nil error allows the submission.
type SubmitLimiter interface {
	AllowSubmit(ctx context.Context, userID int64) error
}

// Update identifies who sent an update and where to answer.
type Update struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Lang      string
}

// Deps are the collaborators of a Controller. Limiter and I18n are optional.
type Deps struct {
	Sessions    session.Storage
	Wallets     WalletSource
	Market      market.Provider
	Orders      orders.Store
	Executor    swap.Executor
	Renderer    *render.Renderer
	Idempotency idempotency.Manager
	Limiter     SubmitLimiter
	I18n        *i18n.Manager
}

// Config holds controller settings.
type Config struct {
	NativeSymbol     string
	CallTimeout      time.Duration
	ExecutionTimeout time.Duration
	SubmitTTL        time.Duration
	// BalanceBudget bounds all balance lookups of one render together.
	BalanceBudget    time.Duration
}

const maxBalanceLookups = 8

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 45 * time.Second
	}
	if c.SubmitTTL <= 0 {
		c.SubmitTTL = 10 * time.Minute
	}
	if c.BalanceBudget <= 0 {
		c.BalanceBudget = 5 * time.Second
	}
	return c
}

// Controller handles interactive updates for one user at a time. Callers serialise updates per user.
type Controller struct {
	deps Deps
	cfg  Config
	now  func() time.Time
	log  *slog.Logger
}

// NewController creates a Controller.
func NewController(deps Deps, cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		deps: deps,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
		log:  log.With(slog.String("component", "trading")),
	}
}

func (c *Controller) translator(u Update) i18n.Translator {
	if c.deps.I18n == nil {
		return nil
	}
	return c.deps.I18n.Translator(u.Lang)
}

func (c *Controller) load(ctx context.Context, userID int64) (*session.Step, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	step, err := session.Load(ctx, c.deps.Sessions, userID)
	if err != nil {
		return nil, apperrors.NewTransientError("session store", err)
	}
	step.UserID = userID
	return step, nil
}

// loadLive returns the stored step for a callback. Buttons belong to a live message, so a missing
// step means the session expired.
func (c *Controller) loadLive(ctx context.Context, userID int64) (*session.Step, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	step, err := c.deps.Sessions.Get(ctx, userID)
	if errors.Is(err, session.ErrStepNotFound) {
		return nil, apperrors.NewSessionNotFoundError(userID)
	}
	if err != nil {
		return nil, apperrors.NewTransientError("session store", err)
	}
	step.UserID = userID
	return step, nil
}

func (c *Controller) listWallets(ctx context.Context, userID int64) ([]wallet.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	records, err := c.deps.Wallets.ListWallets(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("list wallets: %w", err))
	}
	return records, nil
}

// show renders the view matching the step's flow and persists the step.
func (c *Controller) show(ctx context.Context, u Update, step *session.Step) error {
	opts := view.Options{
		Translator:   c.translator(u),
		NativeSymbol: c.cfg.NativeSymbol,
	}
	if step.Flow == session.FlowNone && step.Token != nil {
		opts.Balances = c.balances(ctx, step.Wallets)
	}

	v, err := view.ForStep(step, opts)
	if err != nil {
		return err
	}
	return c.deps.Renderer.Render(ctx, u.ChatID, step, v)
}

// balances looks up every wallet concurrently under one deadline. Lookups that miss it render as zero.
func (c *Controller) balances(ctx context.Context, records []wallet.Record) map[string]decimal.Decimal {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.BalanceBudget)
	defer cancel()

	values := make([]decimal.Decimal, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBalanceLookups)
	for i, rec := range records {
		g.Go(func() error {
			values[i] = c.deps.Market.Balance(gctx, rec.Address)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]decimal.Decimal, len(records))
	for i, rec := range records {
		out[rec.Address] = values[i]
	}
	return out
}

// apply runs the state machine and converts its rejection into the user-facing taxonomy.
func apply(step *session.Step, ev session.Event) (*session.Step, error) {
	next, err := session.Apply(step, ev)
	if err != nil {
		var verr *session.ValidationError
		if errors.As(err, &verr) {
			return nil, apperrors.NewValidationError(verr.Message)
		}
		return nil, err
	}
	return next, nil
}

func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "execution failed"
}
