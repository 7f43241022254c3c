package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/trading"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const contextKey = "himera.ctx"

// Context returns the request context attached to the update, or context.Background.
func Context(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// WithContext attaches ctx to the update for the handlers further down the chain.
func WithContext(c telebot.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// UpdateFrom extracts the user and chat identity of an update.
// MessageID is only set for user-authored messages, never for the bot message a callback belongs to.
func UpdateFrom(c telebot.Context) trading.Update {
	var u trading.Update
	if sender := c.Sender(); sender != nil {
		u.UserID = sender.ID
		u.Lang = sender.LanguageCode
	}
	if chat := c.Chat(); chat != nil {
		u.ChatID = chat.ID
	} else {
		u.ChatID = u.UserID
	}
	if c.Callback() == nil {
		if msg := c.Message(); msg != nil {
			u.MessageID = msg.ID
		}
	}
	return u
}

// Conversation is the part of the trading controller the handlers drive.
type Conversation interface {
	Start(ctx context.Context, u trading.Update) error
	Cancel(ctx context.Context, u trading.Update) error
	HandleText(ctx context.Context, u trading.Update, text string) error
	HandleAction(ctx context.Context, u trading.Update, data string) (string, error)
	ListOrders(ctx context.Context, u trading.Update, page int) error
}

var _ Conversation = (*trading.Controller)(nil)
