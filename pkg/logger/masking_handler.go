package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "***"

// sensitiveKeys mark attribute keys whose values are never logged. A key matches when it equals
// one of them or ends with "_" plus one, so "bot_token" is hidden and "token_address" is not.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"private_key",
	"mnemonic",
	"dsn",
}

// botTokenPattern matches Telegram bot tokens, which leak into transport errors through request URLs.
var botTokenPattern = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)

// MaskingHandler redacts secrets and stamps the correlation id before delegating.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redact(a)
	}
	return &MaskingHandler{next: h.next.WithAttrs(clean)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, scrub(record.Message), record.PC)
	if id := CorrelationIDFromContext(ctx); id != "" {
		out.AddAttrs(slog.String("correlation_id", id))
	}
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func redact(a slog.Attr) slog.Attr {
	if sensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		inner := v.Group()
		clean := make([]any, len(inner))
		for i, g := range inner {
			clean[i] = redact(g)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindString:
		return slog.String(a.Key, scrub(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return slog.String(a.Key, scrub(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if key == s || strings.HasSuffix(key, "_"+s) {
			return true
		}
	}
	return false
}

func scrub(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	return botTokenPattern.ReplaceAllString(s, redacted)
}
