package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewCancelHandler leaves the current flow and returns the user to the main view.
func NewCancelHandler(conv Conversation, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c == nil || c.Sender() == nil {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		return conv.Cancel(Context(c), UpdateFrom(c))
	}
}
