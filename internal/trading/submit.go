package trading

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/idempotency"
	"github.com/Proton-105/himera-swap/internal/orders"
	"github.com/Proton-105/himera-swap/internal/session"
)

type submission struct {
	OrderIDs []string `json:"order_ids"`
}

// submit places one order per selected wallet from the active flow and exits to the main view.
// Repeated submissions of the same setup from the same live message create the orders once.
func (c *Controller) submit(ctx context.Context, u Update, step *session.Step, size session.Size) (string, error) {
	if err := checkSubmittable(step); err != nil {
		return "", err
	}
	if err := checkSize(step.Mode, size); err != nil {
		return "", err
	}

	records := step.SelectedRecords()
	if len(records) == 0 {
		return "", apperrors.NewValidationError("select at least one wallet")
	}

	if c.deps.Limiter != nil {
		if err := c.deps.Limiter.AllowSubmit(ctx, u.UserID); err != nil {
			return "", err
		}
	}

	key := idempotency.GenerateKey("submit", u.UserID, step.MainMessageID, step.Flow, step.Mode,
		size.Kind, size.Value.String(), flowParams(step), step.SelectedWallets)

	res, err := c.deps.Idempotency.Execute(ctx, key, c.cfg.SubmitTTL, func(ctx context.Context) (any, error) {
		batch := make([]*orders.Order, 0, len(records))
		for _, rec := range records {
			o := c.newOrder(u, step, size)
			o.WalletAddress = rec.Address
			o.Slippage = slippage(rec, step.Mode)
			if step.Flow == session.FlowDCA {
				orders.NewDCA(o, c.now())
			}
			batch = append(batch, o)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		err := c.deps.Orders.CreateBatch(callCtx, batch)
		cancel()
		if err != nil {
			return nil, apperrors.NewDatabaseError(fmt.Errorf("create orders: %w", err))
		}

		ids := make([]string, 0, len(batch))
		for _, o := range batch {
			ids = append(ids, o.ID)
		}
		return submission{OrderIDs: ids}, nil
	})
	if err != nil {
		return "", err
	}

	var placed submission
	if err := res.Decode(&placed); err != nil {
		return "", fmt.Errorf("decode submission: %w", err)
	}

	c.log.Info("orders placed",
		slog.Int64("user_id", u.UserID),
		slog.String("flow", string(step.Flow)),
		slog.Int("count", len(placed.OrderIDs)),
		slog.Bool("replayed", res.FromCache),
	)

	kind := step.Flow
	next, err := apply(step, session.Event{Type: session.EventSubmit})
	if err != nil {
		return "", err
	}
	if err := c.show(ctx, u, next); err != nil {
		return "", err
	}

	return fmt.Sprintf("Placed %d %s order(s).", len(placed.OrderIDs), kind), nil
}

func (c *Controller) newOrder(u Update, step *session.Step, size session.Size) *orders.Order {
	o := &orders.Order{
		UserID:       u.UserID,
		ChatID:       u.ChatID,
		TokenAddress: step.Token.Address,
		TokenSymbol:  step.Token.Symbol,
		Mode:         orders.Mode(step.Mode),
		SizeKind:     orders.SizeKind(size.Kind),
		Size:         size.Value,
		Status:       orders.StatusPending,
	}

	switch step.Flow {
	case session.FlowLimit:
		o.Kind = orders.KindLimit
		o.Metric = orders.Metric(step.Limit.Metric)
		o.Target = step.Limit.TriggerValue
	case session.FlowDCA:
		o.Kind = orders.KindDCA
		o.IntervalMinutes = step.DCA.IntervalMinutes
		o.DurationMinutes = step.DCA.DurationMinutes
	}

	return o
}

func checkSubmittable(step *session.Step) error {
	if step.Token == nil {
		return apperrors.NewValidationError("select a token first")
	}

	switch step.Flow {
	case session.FlowLimit:
		if step.Limit == nil || !step.Limit.TriggerValue.IsPositive() {
			return apperrors.NewValidationError("set the trigger value first")
		}
	case session.FlowDCA:
		if step.DCA == nil || step.DCA.DurationMinutes == 0 || step.DCA.IntervalMinutes == 0 {
			return apperrors.NewValidationError("set the duration and interval first")
		}
		if orders.Occurrences(step.DCA.DurationMinutes, step.DCA.IntervalMinutes) == 0 {
			return apperrors.NewValidationError("the interval must not exceed the duration")
		}
	default:
		return apperrors.NewValidationError("no order setup is active")
	}

	return nil
}

func flowParams(step *session.Step) string {
	switch {
	case step.Limit != nil:
		return string(step.Limit.Metric) + "/" + step.Limit.TriggerValue.String()
	case step.DCA != nil:
		return fmt.Sprintf("%d/%d", step.DCA.DurationMinutes, step.DCA.IntervalMinutes)
	default:
		return ""
	}
}
