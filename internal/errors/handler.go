package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/himera-swap/pkg/logger"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

const codeUnknown = "unknown"

// Handler logs errors, reports severe ones to Sentry and resolves the text shown to the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle returns the user-facing message and whether the failed operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := classify(err)
	code := appErr.Code
	if code == "" {
		code = codeUnknown
	}

	level := slog.LevelError
	if appErr.Severity == SeverityLow {
		level = slog.LevelWarn
	}
	h.log.LogAttrs(ctx, level, "request failed",
		slog.String("code", code),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.String("error", err.Error()),
	)
	metrics.RecordError(code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical) {
		capture(ctx, err, code, appErr.Severity)
	}

	if appErr.UserMessage == "" {
		return defaultUserMessage, appErr.Retryable
	}
	return appErr.UserMessage, appErr.Retryable
}

// classify finds the AppError in err's chain. Deadline overruns become timeouts and anything else
// is an internal error of high severity.
func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	return &AppError{Message: err.Error(), Severity: SeverityHigh, cause: err}
}

func capture(ctx context.Context, err error, code string, severity Severity) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", code)
		scope.SetTag("severity", string(severity))
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		sentry.CaptureException(err)
	})
}
