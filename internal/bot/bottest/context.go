// Package bottest provides a scripted telebot.Context for handler and middleware tests.
package bottest

import (
	"fmt"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// Context implements the parts of telebot.Context the bot uses. Other methods panic.
type Context struct {
	telebot.Context

	UpdateID int
	User     *telebot.User
	Msg      *telebot.Message
	CB       *telebot.Callback

	mu        sync.Mutex
	store     map[string]any
	sent      []string
	responses []*telebot.CallbackResponse
}

// Text returns a context for a text message from userID.
func Text(userID int64, messageID int, text string) *Context {
	user := &telebot.User{ID: userID, LanguageCode: "en"}
	return &Context{
		UpdateID: messageID,
		User:     user,
		Msg:      &telebot.Message{ID: messageID, Text: text, Sender: user, Chat: &telebot.Chat{ID: userID}},
	}
}

// Callback returns a context for a button press by userID on message messageID.
func Callback(userID int64, messageID int, data string) *Context {
	user := &telebot.User{ID: userID, LanguageCode: "en"}
	msg := &telebot.Message{ID: messageID, Chat: &telebot.Chat{ID: userID}}
	return &Context{
		UpdateID: messageID,
		User:     user,
		CB:       &telebot.Callback{ID: fmt.Sprintf("cb-%d", messageID), Data: data, Sender: user, Message: msg},
	}
}

func (c *Context) Update() telebot.Update {
	return telebot.Update{ID: c.UpdateID, Message: c.Msg, Callback: c.CB}
}

func (c *Context) Sender() *telebot.User {
	return c.User
}

func (c *Context) Chat() *telebot.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *Context) Message() *telebot.Message {
	if c.CB != nil {
		return c.CB.Message
	}
	return c.Msg
}

func (c *Context) Callback() *telebot.Callback {
	return c.CB
}

func (c *Context) Text() string {
	if c.Msg == nil {
		return ""
	}
	return c.Msg.Text
}

func (c *Context) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

func (c *Context) Send(what interface{}, _ ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, fmt.Sprint(what))
	return nil
}

func (c *Context) Respond(resp ...*telebot.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(resp) == 0 {
		resp = []*telebot.CallbackResponse{{}}
	}
	c.responses = append(c.responses, resp...)
	return nil
}

// Sent returns the texts passed to Send.
func (c *Context) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Responses returns the callback answers.
func (c *Context) Responses() []*telebot.CallbackResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*telebot.CallbackResponse(nil), c.responses...)
}
