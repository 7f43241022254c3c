// Package render keeps one live message per user up to date.
package render

import (
	"context"
	"errors"
	"strconv"

	telebot "gopkg.in/telebot.v3"
)

// Transport is the chat surface used by the renderer and the notifier.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, markup *telebot.ReplyMarkup) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Messenger is the part of *telebot.Bot the transport uses.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Delete(msg telebot.Editable) error
}

var _ Messenger = (*telebot.Bot)(nil)

// TelebotTransport implements Transport on a telebot client.
type TelebotTransport struct {
	api Messenger
}

// NewTelebotTransport wraps api.
func NewTelebotTransport(api Messenger) *TelebotTransport {
	return &TelebotTransport{api: api}
}

func (t *TelebotTransport) Send(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (int, error) {
	var msg *telebot.Message
	err := withContext(ctx, func() error {
		var err error
		msg, err = t.api.Send(telebot.ChatID(chatID), text, sendOptions(markup))
		return err
	})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *TelebotTransport) Edit(ctx context.Context, chatID int64, messageID int, text string, markup *telebot.ReplyMarkup) error {
	stored := &telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return withContext(ctx, func() error {
		_, err := t.api.Edit(stored, text, sendOptions(markup))
		if errors.Is(err, telebot.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

func (t *TelebotTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	stored := &telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return withContext(ctx, func() error {
		return t.api.Delete(stored)
	})
}

// Notify sends a plain message, satisfying the order monitor's notifier.
func (t *TelebotTransport) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := t.Send(ctx, chatID, text, nil)
	return err
}

func sendOptions(markup *telebot.ReplyMarkup) *telebot.SendOptions {
	return &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		ReplyMarkup:           markup,
		DisableWebPagePreview: true,
	}
}

// withContext runs fn but stops waiting once ctx is done. telebot calls are bounded by the client timeout.
func withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
