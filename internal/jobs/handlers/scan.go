// Package handlers processes the order scan tasks.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-swap/internal/jobs"
)

// Scanner runs one pass over pending orders of each kind.
type Scanner interface {
	ScanLimit(ctx context.Context) error
	ScanDCA(ctx context.Context) error
}

// ScanHandler runs a single scan kind for each task.
type ScanHandler struct {
	scan func(context.Context) error
	log  *slog.Logger
}

// NewScanHandler returns the handler for taskType.
func NewScanHandler(taskType string, scanner Scanner, log *slog.Logger) (*ScanHandler, error) {
	if log == nil {
		log = slog.Default()
	}

	h := &ScanHandler{log: log}
	switch taskType {
	case jobs.TaskTypeScanLimit:
		h.scan = scanner.ScanLimit
	case jobs.TaskTypeScanDCA:
		h.scan = scanner.ScanDCA
	default:
		return nil, fmt.Errorf("no scan for task type %q", taskType)
	}
	return h, nil
}

// ProcessTask runs the scan. Failures are not retried; the next periodic task scans again.
func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if err := h.scan(ctx); err != nil {
		h.log.ErrorContext(ctx, "order scan failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// Register wires both scan kinds into w.
func Register(w jobs.Worker, scanner Scanner, log *slog.Logger) error {
	for _, taskType := range []string{jobs.TaskTypeScanLimit, jobs.TaskTypeScanDCA} {
		h, err := NewScanHandler(taskType, scanner, log)
		if err != nil {
			return err
		}
		w.RegisterHandler(taskType, h)
	}
	return nil
}
