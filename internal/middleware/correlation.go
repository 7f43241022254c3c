package middleware

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	"github.com/Proton-105/himera-swap/pkg/logger"
)

// Correlation gives every update its own context carrying a fresh correlation id.
func Correlation(base context.Context) handlers.Middleware {
	if base == nil {
		base = context.Background()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			handlers.WithContext(c, logger.WithCorrelationID(base, ""))
			return next(c)
		}
	}
}
