package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	"github.com/Proton-105/himera-swap/internal/bot/keyboard"
	errors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/user"
)

const (
	fallbackUserMessage = "⚠️ Something went wrong. Please try again later."
	activityTimeout     = 5 * time.Second
)

// reporter turns a handler failure into a log entry, a metric and a reply the user can see.
type reporter struct {
	errs *errors.Handler
	log  *slog.Logger
}

func (r reporter) report(c telebot.Context, err error) {
	text := fallbackUserMessage
	if r.errs != nil {
		if msg, _ := r.errs.Handle(handlers.Context(c), err); msg != "" {
			text = msg
		}
	}
	if c == nil {
		return
	}
	if sendErr := notify(c, text); sendErr != nil {
		r.log.WarnContext(handlers.Context(c), "failed to deliver error reply", slog.Any("error", sendErr))
	}
}

// notify answers callbacks with an alert on the pressed button and everything else with a chat message.
func notify(c telebot.Context, text string) error {
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

// RecoveryMiddleware stops a panicking handler from taking the poller down and tells the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}
	rep := reporter{errs: errHandler, log: log}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log.ErrorContext(handlers.Context(c), "handler panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				rep.report(c, errors.NewDatabaseError(fmt.Errorf("panic: %v", r)))
				err = nil
			}()
			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler errors and swallows them so telebot does not log them again.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	rep := reporter{errs: errHandler, log: slog.Default()}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			if err := next(c); err != nil {
				rep.report(c, err)
			}
			return nil
		}
	}
}

// LoggingMiddleware logs every update with its sender, kind and outcome. Free text is not logged.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			ctx := handlers.Context(c)
			attrs := describe(c)
			log.LogAttrs(ctx, slog.LevelDebug, "update received", attrs...)

			started := time.Now()
			err := next(c)

			attrs = append(attrs, slog.Duration("duration", time.Since(started)))
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.Any("error", err))
			}
			log.LogAttrs(ctx, level, "update handled", attrs...)
			return err
		}
	}
}

// describe returns the sender and a low-cardinality summary of the update.
func describe(c telebot.Context) []slog.Attr {
	if c == nil {
		return nil
	}

	attrs := make([]slog.Attr, 0, 4)
	if s := c.Sender(); s != nil {
		attrs = append(attrs, slog.Int64("user_id", s.ID))
	}

	switch {
	case c.Callback() != nil:
		action, _, _ := keyboard.DecodeCallback(c.Callback().Data)
		attrs = append(attrs, slog.String("kind", "callback"), slog.String("action", action))
	case strings.HasPrefix(c.Text(), "/"):
		attrs = append(attrs, slog.String("kind", "command"), slog.String("action", commandName(c.Text())))
	default:
		attrs = append(attrs, slog.String("kind", "text"))
	}
	return attrs
}

// AuthMiddleware makes sure the sender has a user record before any handler runs.
func AuthMiddleware(users *user.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			if c == nil || c.Sender() == nil {
				return next(c)
			}

			ctx := handlers.Context(c)
			if _, err := users.GetOrCreate(ctx, c.Sender()); err != nil {
				log.ErrorContext(ctx, "failed to resolve user", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
				return errors.NewDatabaseError(err)
			}
			return next(c)
		}
	}
}

// LastActiveMiddleware records activity in the background so the reply is never delayed by it.
func LastActiveMiddleware(users *user.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			if c != nil && c.Sender() != nil {
				id := c.Sender().ID
				base := context.WithoutCancel(handlers.Context(c))
				go func() {
					ctx, cancel := context.WithTimeout(base, activityTimeout)
					defer cancel()
					if err := users.Touch(ctx, id); err != nil {
						log.DebugContext(ctx, "failed to record activity", slog.Int64("user_id", id), slog.Any("error", err))
					}
				}()
			}
			return next(c)
		}
	}
}
