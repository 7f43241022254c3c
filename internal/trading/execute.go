package trading

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/internal/swap"
	"github.com/Proton-105/himera-swap/internal/wallet"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

// executeMarket swaps size on every selected wallet and reports one line per wallet.
func (c *Controller) executeMarket(ctx context.Context, u Update, step *session.Step, size session.Size) error {
	if step.Token == nil {
		return apperrors.NewValidationError("select a token first")
	}
	if err := checkSize(step.Mode, size); err != nil {
		return err
	}

	records := step.SelectedRecords()
	if len(records) == 0 {
		return apperrors.NewValidationError("select at least one wallet")
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		req := swap.Request{
			UserID:        u.UserID,
			WalletAddress: rec.Address,
			TokenAddress:  step.Token.Address,
			Mode:          string(step.Mode),
			SizeKind:      string(size.Kind),
			Size:          size.Value,
			Slippage:      slippage(rec, step.Mode),
			ClientRef:     uuid.NewString(),
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.ExecutionTimeout)
		res, err := c.deps.Executor.ExecuteSwap(callCtx, req)
		cancel()

		if err != nil || res == nil {
			if err == nil {
				err = apperrors.NewExecutionError("empty result", nil)
			}
			metrics.RecordOrderExecution("market", "failed")
			c.log.Warn("market swap failed",
				slog.Int64("user_id", u.UserID),
				slog.String("wallet", rec.Address),
				slog.Any("error", err),
			)
			lines = append(lines, fmt.Sprintf("❌ %s: %s", html.EscapeString(rec.Name), html.EscapeString(userMessage(err))))
			continue
		}

		metrics.RecordOrderExecution("market", "success")
		lines = append(lines, fmt.Sprintf("✅ %s: %s %s %s · tx <code>%s</code>",
			html.EscapeString(rec.Name), step.Mode, describeSize(size), html.EscapeString(step.Token.Symbol),
			html.EscapeString(res.TxRef)))
	}

	_, err := c.deps.Renderer.Send(ctx, u.ChatID, strings.Join(lines, "\n"))
	return err
}

func checkSize(mode session.Mode, size session.Size) error {
	switch {
	case mode == session.ModeSell && size.Kind != session.SizePercent:
		return apperrors.NewValidationError("sell size must be a percentage")
	case mode == session.ModeBuy && size.Kind != session.SizeAmount:
		return apperrors.NewValidationError("buy size must be an amount")
	case !size.Value.IsPositive():
		return apperrors.NewValidationError("size must be positive")
	}
	return nil
}

func slippage(rec wallet.Record, mode session.Mode) decimal.Decimal {
	if mode == session.ModeSell {
		return rec.SellSlippage
	}
	return rec.BuySlippage
}

func describeSize(size session.Size) string {
	if size.Kind == session.SizePercent {
		return size.Value.String() + "%"
	}
	return size.Value.String()
}
