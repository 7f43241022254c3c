package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
	apperrors "github.com/Proton-105/himera-swap/internal/errors"
	"github.com/Proton-105/himera-swap/internal/ratelimit"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates and order submissions.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	now     func() time.Time
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		now:     time.Now,
		log:     log,
	}
}

// Handle enforces the per-user rule on every update.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		if err := m.check(handlers.Context(c), ratelimit.RulePerUser, sender.ID); err != nil {
			return err
		}
		return next(c)
	}
}

// AllowSubmit enforces the order submission rule.
func (m *RateLimitMiddleware) AllowSubmit(ctx context.Context, userID int64) error {
	return m.check(ctx, ratelimit.RuleSubmit, userID)
}

// check returns a rate limit AppError when the rule rejects userID. Limiter failures let the request through.
func (m *RateLimitMiddleware) check(ctx context.Context, rule string, userID int64) error {
	if m == nil || m.limiter == nil || !m.rules.Enabled() || m.rules.IsWhitelisted(userID) {
		return nil
	}

	limit, window, err := m.rules.Limit(rule)
	if err != nil {
		m.log.ErrorContext(ctx, "failed to load rate limit rule", slog.String("rule", rule), slog.Any("error", err))
		return nil
	}

	result, err := m.limiter.Check(ctx, ratelimit.Key(rule, userID), limit, window)
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded):
	case err != nil:
		m.log.WarnContext(ctx, "rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil
	case result == nil || result.Allowed:
		return nil
	}

	metrics.RecordRateLimitHit(rule)
	m.log.WarnContext(ctx, "rate limit exceeded", slog.Int64("user_id", userID), slog.String("rule", rule), slog.String("backend", backendOf(result)))

	return apperrors.NewRateLimitError(result.RetryAfter(m.now(), window))
}

func backendOf(result *ratelimit.Result) string {
	if result == nil || result.Backend == "" {
		return "unknown"
	}
	return result.Backend
}
