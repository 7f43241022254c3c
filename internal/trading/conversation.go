package trading

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	"github.com/Proton-105/himera-swap/internal/bot/view"
	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/httpx"
	"github.com/Proton-105/himera-swap/internal/market"
	"github.com/Proton-105/himera-swap/internal/session"
)

// Start leaves any flow, refreshes the wallet list and posts a fresh live message.
func (c *Controller) Start(ctx context.Context, u Update) error {
	step, err := c.load(ctx, u.UserID)
	if err != nil {
		return err
	}

	records, err := c.listWallets(ctx, u.UserID)
	if err != nil {
		return err
	}

	next, err := apply(step, session.Event{Type: session.EventBack})
	if err != nil {
		return err
	}
	if next, err = apply(next, session.Event{Type: session.EventSetWallets, Wallets: records}); err != nil {
		return err
	}

	c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID)
	next.MainMessageID = 0
	return c.show(ctx, u, next)
}

// Cancel leaves the current flow and re-renders the main view.
func (c *Controller) Cancel(ctx context.Context, u Update) error {
	step, err := c.load(ctx, u.UserID)
	if err != nil {
		return err
	}

	next, err := apply(step, session.Event{Type: session.EventBack})
	if err != nil {
		return err
	}

	c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID)
	return c.show(ctx, u, next)
}

// HandleText consumes free text: the awaited input if any, otherwise a token address.
func (c *Controller) HandleText(ctx context.Context, u Update, text string) error {
	step, err := c.load(ctx, u.UserID)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if step.Input != session.InputNone {
		return c.consumeInput(ctx, u, step, text)
	}

	if common.IsHexAddress(text) {
		return c.selectToken(ctx, u, step, text)
	}

	return apperrors.NewValidationError("send a token contract address")
}

func (c *Controller) consumeInput(ctx context.Context, u Update, step *session.Step, text string) error {
	awaited := step.Input

	next, err := apply(step, session.Event{Type: session.EventInput, Text: text})
	if err != nil {
		return err
	}

	c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID, u.MessageID)

	if next.PendingSize == nil {
		return c.show(ctx, u, next)
	}

	size := *next.PendingSize
	next.PendingSize = nil

	switch awaited {
	case session.InputBuyAmount, session.InputSellPercent:
		if err := c.show(ctx, u, next); err != nil {
			return err
		}
		return c.executeMarket(ctx, u, next, size)
	default:
		notice, err := c.submit(ctx, u, next, size)
		if err != nil {
			// keep the flow so the user can fix the setup and retry
			if showErr := c.show(ctx, u, next); showErr != nil {
				c.log.Warn("re-render after failed submission", slog.Any("error", showErr))
			}
			return err
		}
		_, sendErr := c.deps.Renderer.Send(ctx, u.ChatID, notice)
		return sendErr
	}
}

func (c *Controller) selectToken(ctx context.Context, u Update, step *session.Step, address string) error {
	token, err := c.tokenInfo(ctx, address)
	if err != nil {
		return err
	}

	records, err := c.listWallets(ctx, u.UserID)
	if err != nil {
		return err
	}

	next, err := apply(step, session.Event{Type: session.EventSelectToken, Token: token, Wallets: records})
	if err != nil {
		return err
	}

	// a new token gets a new live message below the pasted address
	next.MainMessageID = 0
	return c.show(ctx, u, next)
}

func (c *Controller) tokenInfo(ctx context.Context, address string) (*session.Token, error) {
	token, err := c.deps.Market.TokenInfo(ctx, address)
	if err == nil {
		return token, nil
	}

	var statusErr *httpx.StatusError
	switch {
	case errors.Is(err, market.ErrInvalidAddress):
		return nil, apperrors.NewValidationError("not a valid token address")
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewValidationError("token not found")
	case errors.As(err, new(*apperrors.AppError)):
		return nil, err
	default:
		return nil, apperrors.NewTransientError("market", err)
	}
}

// HandleAction processes a callback. The returned notice is shown as a short toast.
func (c *Controller) HandleAction(ctx context.Context, u Update, data string) (string, error) {
	action, arg, err := keyboard.DecodeCallback(data)
	if err != nil {
		return "", apperrors.NewValidationError(err.Error())
	}

	switch action {
	case keyboard.ActionOrders:
		return "", c.ListOrders(ctx, u, parsePage(arg))
	case keyboard.ActionCancel:
		return c.CancelOrder(ctx, u, arg)
	}

	step, err := c.loadLive(ctx, u.UserID)
	if err != nil {
		return "", err
	}

	var ev session.Event
	switch action {
	case keyboard.ActionWallet:
		ev = session.Event{Type: session.EventToggleWallet, WalletKey: arg}
	case keyboard.ActionShowAll:
		ev = session.Event{Type: session.EventToggleShowAll}
	case keyboard.ActionMode:
		if session.Mode(arg) == step.Mode {
			return "", nil
		}
		ev = session.Event{Type: session.EventToggleMode}
	case keyboard.ActionMetric:
		ev = session.Event{Type: session.EventToggleMetric}
	case keyboard.ActionBack:
		c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID)
		ev = session.Event{Type: session.EventBack}
	case keyboard.ActionFlow:
		records, err := c.listWallets(ctx, u.UserID)
		if err != nil {
			return "", err
		}
		ev = session.Event{Type: session.EventEnterFlow, Flow: session.Flow(arg), Wallets: records}
	case keyboard.ActionRefresh:
		return "", c.refresh(ctx, u, step)
	case keyboard.ActionTrigger:
		return "", c.await(ctx, u, step, session.InputLimitTriggerValue)
	case keyboard.ActionDuration:
		return "", c.await(ctx, u, step, session.InputDCADuration)
	case keyboard.ActionInterval:
		return "", c.await(ctx, u, step, session.InputDCAInterval)
	case keyboard.ActionCustom:
		return "", c.await(ctx, u, step, customInput(step))
	case keyboard.ActionSize:
		size, err := keyboard.ParseSizeArg(arg)
		if err != nil {
			return "", apperrors.NewValidationError(err.Error())
		}
		if step.Flow != session.FlowNone {
			return "", apperrors.NewValidationError("leave the order setup first")
		}
		return "", c.executeMarket(ctx, u, step, size)
	case keyboard.ActionSubmit:
		size, err := keyboard.ParseSizeArg(arg)
		if err != nil {
			return "", apperrors.NewValidationError(err.Error())
		}
		return c.submit(ctx, u, step, size)
	default:
		return "", apperrors.NewValidationError("unknown action")
	}

	next, err := apply(step, ev)
	if err != nil {
		return "", err
	}
	return "", c.show(ctx, u, next)
}

// refresh reloads the wallets and, when a token is selected, re-selects it with a fresh snapshot.
func (c *Controller) refresh(ctx context.Context, u Update, step *session.Step) error {
	records, err := c.listWallets(ctx, u.UserID)
	if err != nil {
		return err
	}

	if step.Token == nil {
		next, err := apply(step, session.Event{Type: session.EventSetWallets, Wallets: records})
		if err != nil {
			return err
		}
		return c.show(ctx, u, next)
	}

	token, err := c.tokenInfo(ctx, step.Token.Address)
	if err != nil {
		return err
	}

	next, err := apply(step, session.Event{Type: session.EventSelectToken, Token: token, Wallets: records})
	if err != nil {
		return err
	}

	c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID)
	return c.show(ctx, u, next)
}

// await posts the prompt for input and records it on the step.
func (c *Controller) await(ctx context.Context, u Update, step *session.Step, input session.Input) error {
	if _, err := apply(step, session.Event{Type: session.EventAwaitInput, Input: input}); err != nil {
		return err
	}

	promptID, err := c.deps.Renderer.Send(ctx, u.ChatID, view.Prompt(c.translator(u), input))
	if err != nil {
		return err
	}

	next, err := apply(step, session.Event{Type: session.EventAwaitInput, Input: input, PromptMessageID: promptID})
	if err != nil {
		return err
	}

	c.deps.Renderer.Cleanup(ctx, u.ChatID, step.PromptMessageID)
	return c.show(ctx, u, next)
}

func customInput(step *session.Step) session.Input {
	switch {
	case step.Flow != session.FlowNone:
		return session.InputOrderAmount
	case step.Mode == session.ModeSell:
		return session.InputSellPercent
	default:
		return session.InputBuyAmount
	}
}
