package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/himera-swap/internal/bot/view"
	"github.com/Proton-105/himera-swap/internal/session"
	"github.com/Proton-105/himera-swap/pkg/metrics"
)

const defaultCallTimeout = 10 * time.Second

// Renderer edits the user's live message in place, falling back to a fresh message, and persists the step.
type Renderer struct {
	transport   Transport
	storage     session.Storage
	callTimeout time.Duration
	log         *slog.Logger
}

// NewRenderer creates a Renderer. A non-positive callTimeout selects the default.
func NewRenderer(transport Transport, storage session.Storage, callTimeout time.Duration, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	return &Renderer{
		transport:   transport,
		storage:     storage,
		callTimeout: callTimeout,
		log:         log.With(slog.String("component", "renderer")),
	}
}

// Render shows v for the user and saves step. MainMessageID is edited when set; any edit failure
// sends a new message whose id replaces MainMessageID. step is updated in place.
func (r *Renderer) Render(ctx context.Context, chatID int64, step *session.Step, v view.View) error {
	if step.MainMessageID != 0 {
		err := r.edit(ctx, chatID, step.MainMessageID, v)
		if err == nil {
			metrics.RecordRender("edited")
			return r.save(ctx, step)
		}
		r.log.Debug("edit failed, sending new message",
			slog.Int64("user_id", step.UserID),
			slog.Int("message_id", step.MainMessageID),
			slog.Any("error", err),
		)
	}

	id, err := r.send(ctx, chatID, v)
	if err != nil {
		metrics.RecordRender("failed")
		return fmt.Errorf("send view: %w", err)
	}

	if step.MainMessageID != 0 {
		metrics.RecordRender("fallback")
	} else {
		metrics.RecordRender("sent")
	}
	step.MainMessageID = id

	return r.save(ctx, step)
}

// Send posts a standalone message, such as a prompt, and returns its id.
func (r *Renderer) Send(ctx context.Context, chatID int64, text string) (int, error) {
	return r.send(ctx, chatID, view.View{Text: text})
}

// Cleanup deletes messages in the background. Failures are only logged.
func (r *Renderer) Cleanup(ctx context.Context, chatID int64, messageIDs ...int) {
	ids := make([]int, 0, len(messageIDs))
	for _, id := range messageIDs {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		for _, id := range ids {
			callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			if err := r.transport.Delete(callCtx, chatID, id); err != nil {
				r.log.Debug("delete message failed", slog.Int64("chat_id", chatID), slog.Int("message_id", id), slog.Any("error", err))
			}
			cancel()
		}
	}()
}

func (r *Renderer) edit(ctx context.Context, chatID int64, messageID int, v view.View) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.transport.Edit(ctx, chatID, messageID, v.Text, v.Markup)
}

func (r *Renderer) send(ctx context.Context, chatID int64, v view.View) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.transport.Send(ctx, chatID, v.Text, v.Markup)
}

func (r *Renderer) save(ctx context.Context, step *session.Step) error {
	step.UpdatedAt = time.Now().UTC()
	if err := r.storage.Set(ctx, step.UserID, step); err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}
