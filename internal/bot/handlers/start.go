package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewStartHandler posts a fresh live message for the user, leaving any flow in progress.
func NewStartHandler(conv Conversation, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		return conv.Start(Context(c), UpdateFrom(c))
	}
}

// NewOrdersHandler lists the user's pending orders.
func NewOrdersHandler(conv Conversation) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		return conv.ListOrders(Context(c), UpdateFrom(c), 1)
	}
}

// NewTextHandler feeds free text into the conversation.
func NewTextHandler(conv Conversation) Handler {
	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			return nil
		}

		return conv.HandleText(Context(c), UpdateFrom(c), c.Text())
	}
}
