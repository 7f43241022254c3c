package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Proton-105/himera-swap/internal/bot/view"
	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/orders"
)

// ListOrders shows the user's pending orders in the live message. The step itself is unchanged.
func (c *Controller) ListOrders(ctx context.Context, u Update, page int) error {
	step, err := c.load(ctx, u.UserID)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	list, err := c.deps.Orders.ListByUser(callCtx, u.UserID, orders.StatusPending, orders.StatusTriggered)
	cancel()
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("list orders: %w", err))
	}

	v, err := view.Orders(list, page, view.Options{Translator: c.translator(u)})
	if err != nil {
		return err
	}
	return c.deps.Renderer.Render(ctx, u.ChatID, step, v)
}

// CancelOrder cancels a pending order owned by the user. An order already claimed by the trigger loop
// cannot be canceled.
func (c *Controller) CancelOrder(ctx context.Context, u Update, id string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	o, err := c.deps.Orders.Get(callCtx, id)
	cancel()
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return "", apperrors.NewValidationError("order not found")
	case err != nil:
		return "", apperrors.NewDatabaseError(fmt.Errorf("get order: %w", err))
	case o.UserID != u.UserID:
		return "", apperrors.NewValidationError("order not found")
	}

	callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
	err = c.deps.Orders.UpdateStatus(callCtx, id, orders.StatusPending, orders.StatusCanceled, orders.Update{})
	cancel()
	switch {
	case errors.Is(err, orders.ErrConflict):
		return "", apperrors.NewConflictError(fmt.Sprintf("order %s already executing", id), err)
	case errors.Is(err, orders.ErrOrderNotFound):
		return "", apperrors.NewValidationError("order not found")
	case err != nil:
		return "", apperrors.NewDatabaseError(fmt.Errorf("cancel order: %w", err))
	}

	c.log.Info("order canceled", slog.Int64("user_id", u.UserID), slog.String("order_id", id))

	if err := c.ListOrders(ctx, u, 1); err != nil {
		return "", err
	}
	return "Order canceled.", nil
}

func parsePage(arg string) int {
	page, err := strconv.Atoi(arg)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
