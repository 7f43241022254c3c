package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

const maxCommandLabel = 32

// Metrics records the count, status and latency of every update under a low-cardinality label.
func Metrics(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		started := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(updateLabel(c), status, time.Since(started))
		return err
	}
}

// updateLabel is "/command" for commands (without the bot mention), "cb:<action>" for callbacks,
// "text" for free text and "unknown" otherwise.
func updateLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		if action, _, err := keyboard.DecodeCallback(cb.Data); err == nil {
			return "cb:" + action
		}
		return "unknown"
	}

	text := c.Text()
	switch {
	case text == "":
		return "unknown"
	case !strings.HasPrefix(text, "/"):
		return "text"
	}

	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	command = strings.ToLower(command)
	if len(command) > maxCommandLabel {
		return "/other"
	}
	return command
}
