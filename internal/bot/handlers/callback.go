package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewCallbackHandler routes inline button presses into the conversation and answers the callback.
// Errors are returned unanswered so the error middleware can answer with the failure text.
func NewCallbackHandler(conv Conversation, log *slog.Logger) CallbackHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			return nil
		}

		notice, err := conv.HandleAction(Context(c), UpdateFrom(c), cb.Data)
		if err != nil {
			return err
		}

		if err := c.Respond(&telebot.CallbackResponse{Text: notice}); err != nil {
			log.Debug("failed to answer callback", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
		}
		return nil
	}
}
