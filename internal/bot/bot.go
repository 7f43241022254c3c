// Package bot adapts Telegram updates onto the trading conversation.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	errors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/idempotency"
	"github.com/Proton-105/himera-swap/internal/middleware"
	"github.com/Proton-105/himera-swap/internal/user"
	"github.com/Proton-105/himera-swap/pkg/config"
)

// Deps are the collaborators the update pipeline needs. Only Conversation is required.
type Deps struct {
	Conversation   handlers.Conversation
	Users          *user.Service
	Idempotency    idempotency.Manager
	RateLimit      *middleware.RateLimitMiddleware
	Serial         *middleware.Serial
	HandlerTimeout time.Duration
	SentryEnabled  bool
	// BaseContext is the parent of every update context; canceling it aborts in-flight handlers.
	BaseContext context.Context
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot *telebot.Bot
	log     *slog.Logger
	router  *Router
}

// NewAPI creates the telebot client for the configured update mode.
func NewAPI(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telegram update failed", slog.Any("error", err))
		},
	}

	if cfg.Mode == "webhook" {
		hook := &telebot.Webhook{Listen: cfg.WebhookListen}
		if cfg.WebhookURL != "" {
			hook.Endpoint = &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL}
		}
		settings.Poller = hook
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New wires the update pipeline onto tb.
func New(tb *telebot.Bot, deps Deps, log *slog.Logger) (*Bot, error) {
	if tb == nil {
		return nil, fmt.Errorf("telebot client is nil")
	}
	if deps.Conversation == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		telebot: tb,
		log:     log,
		router:  BuildRouter(deps, log),
	}

	tb.Handle(telebot.OnText, b.router.Route)
	tb.Handle(telebot.OnCallback, b.router.Route)

	return b, nil
}

// BuildRouter assembles the middleware chain and registers every command and callback.
func BuildRouter(deps Deps, log *slog.Logger) *Router {
	router := NewRouter(log)
	errHandler := errors.NewHandler(log, deps.SentryEnabled)

	router.Use(middleware.Correlation(deps.BaseContext))
	router.Use(RecoveryMiddleware(log, errHandler))
	if deps.Idempotency != nil {
		router.Use(middleware.Idempotency(deps.Idempotency, log))
	}
	router.Use(ErrorHandlingMiddleware(errHandler))
	router.Use(LoggingMiddleware(log))
	if deps.RateLimit != nil {
		router.Use(deps.RateLimit.Handle)
	}
	if deps.Users != nil {
		router.Use(AuthMiddleware(deps.Users, log))
		router.Use(LastActiveMiddleware(deps.Users, log))
	}
	if deps.HandlerTimeout > 0 {
		router.Use(middleware.Timeout(deps.HandlerTimeout, log))
	}
	if deps.Serial != nil {
		router.Use(deps.Serial.Handle)
	}
	router.Use(middleware.Metrics)

	conv := deps.Conversation
	router.RegisterCommand(CommandStart, handlers.NewStartHandler(conv, log))
	router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(conv, log))
	router.RegisterCommand(CommandOrders, handlers.NewOrdersHandler(conv))
	router.SetDefaultCallback(handlers.NewCallbackHandler(conv, log))
	router.SetDefault(handlers.NewTextHandler(conv))

	return router
}

// Start publishes the command menu and runs the telegram event loop until Stop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	if err := b.telebot.SetCommands(menu); err != nil {
		b.log.Warn("failed to publish command menu", slog.Any("error", err))
	}
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
