// Package rendertest provides an in-memory chat transport for tests.
package rendertest

import (
	"context"
	"errors"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// ErrEditFailed is returned by Edit when FailEdits is set.
var ErrEditFailed = errors.New("edit failed")

// Message is a message currently visible in a chat.
type Message struct {
	ChatID int64
	ID     int
	Text   string
	Markup *telebot.ReplyMarkup
}

// Transport records every call and keeps the visible messages per id.
type Transport struct {
	mu        sync.Mutex
	nextID    int
	messages  map[int]Message
	Sends     int
	Edits     int
	Deleted   []int
	Notices   []string
	FailEdits bool
	FailSends bool
}

// NewTransport returns an empty transport. Message ids start at 100.
func NewTransport() *Transport {
	return &Transport{nextID: 100, messages: make(map[int]Message)}
}

func (t *Transport) Send(_ context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailSends {
		return 0, errors.New("send failed")
	}

	t.nextID++
	t.Sends++
	t.messages[t.nextID] = Message{ChatID: chatID, ID: t.nextID, Text: text, Markup: markup}
	return t.nextID, nil
}

func (t *Transport) Edit(_ context.Context, chatID int64, messageID int, text string, markup *telebot.ReplyMarkup) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailEdits {
		return ErrEditFailed
	}
	if _, ok := t.messages[messageID]; !ok {
		return errors.New("message to edit not found")
	}

	t.Edits++
	t.messages[messageID] = Message{ChatID: chatID, ID: messageID, Text: text, Markup: markup}
	return nil
}

func (t *Transport) Delete(_ context.Context, _ int64, messageID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Deleted = append(t.Deleted, messageID)
	delete(t.messages, messageID)
	return nil
}

// Notify records a notification text.
func (t *Transport) Notify(_ context.Context, _ int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Notices = append(t.Notices, text)
	return nil
}

// Message returns the visible message with id.
func (t *Transport) Message(id int) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.messages[id]
	return m, ok
}

// Seed makes a message with id visible, as if it had been sent earlier.
func (t *Transport) Seed(chatID int64, id int, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messages[id] = Message{ChatID: chatID, ID: id, Text: text}
	if id > t.nextID {
		t.nextID = id
	}
}

// DeletedIDs returns a copy of the deleted message ids.
func (t *Transport) DeletedIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]int(nil), t.Deleted...)
}
