package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	"github.com/Proton-105/himera-swap/internal/idempotency"
)

const updateKeyTTL = 24 * time.Hour

// Idempotency ensures handlers execute at most once per Telegram update.
// Redeliveries of a completed update are dropped, concurrent ones are dropped while the first runs.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			ctx := handlers.Context(c)
			var (
				handlerErr error
				ran        bool
			)

			result, err := manager.Execute(ctx, key, updateKeyTTL, func(context.Context) (any, error) {
				ran = true
				handlerErr = next(c)
				// a failed update is still consumed; the error is reported once by the error middleware
				return true, nil
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.DebugContext(ctx, "duplicate update while in progress", slog.String("key", key))
				return nil
			case err != nil:
				log.WarnContext(ctx, "idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
				if ran {
					return handlerErr
				}
				return next(c)
			}

			if result != nil && result.FromCache {
				log.DebugContext(ctx, "duplicate update dropped", slog.String("key", key))
				return nil
			}

			return handlerErr
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return fmt.Sprintf("upd:%d", id)
	}

	if cb := c.Callback(); cb != nil {
		if cb.ID != "" {
			return fmt.Sprintf("cb:%s", cb.ID)
		}
		return ""
	}

	if msg := c.Message(); msg != nil {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		if msg.ID != 0 {
			return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
		}
	}

	return ""
}
