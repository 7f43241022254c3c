package middleware

import (
	"context"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	apperrors "github.com/Proton-105/himera-swap/internal/errors"
)

type outcome struct {
	err      error
	panicked bool
	value    any
}

// Timeout bounds a handler by d. On expiry the update fails with a timeout error and the
// handler's late result is discarded; its context is canceled so pending calls return early.
func Timeout(d time.Duration, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil || d <= 0 {
			return next
		}

		return func(c telebot.Context) error {
			ctx, cancel := context.WithTimeout(handlers.Context(c), d)
			defer cancel()
			handlers.WithContext(c, ctx)

			done := make(chan outcome, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- outcome{panicked: true, value: r}
					}
				}()
				done <- outcome{err: next(c)}
			}()

			select {
			case out := <-done:
				if out.panicked {
					// re-raised on the caller's goroutine so the recovery middleware sees it
					panic(out.value)
				}
				return out.err
			case <-ctx.Done():
				log.WarnContext(ctx, "handler timed out", slog.Duration("timeout", d))
				return apperrors.NewTimeoutError(ctx.Err())
			}
		}
	}
}
