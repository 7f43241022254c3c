// Package jobs runs the order scans as asynq periodic tasks when several bot replicas share one Redis.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeScanLimit = "orders:scan:limit"
	TaskTypeScanDCA   = "orders:scan:dca"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the queue priority map the worker consumes.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// NewScanTask builds the task for one scan kind. A scan is never retried: the next tick replaces it.
func NewScanTask(taskType string, interval time.Duration) (*asynq.Task, error) {
	switch taskType {
	case TaskTypeScanLimit, TaskTypeScanDCA:
	default:
		return nil, fmt.Errorf("unknown scan task %q", taskType)
	}

	opts := []asynq.Option{asynq.Queue(QueueCritical), asynq.MaxRetry(0)}
	if interval > 0 {
		// at most one queued scan per kind and tick
		opts = append(opts, asynq.Unique(interval), asynq.Timeout(interval))
	}
	return asynq.NewTask(taskType, nil, opts...), nil
}

// EnqueueScans queues one immediate run of both scans.
func EnqueueScans(ctx context.Context, m Manager) error {
	for _, taskType := range []string{TaskTypeScanLimit, TaskTypeScanDCA} {
		task, err := NewScanTask(taskType, 0)
		if err != nil {
			return err
		}
		if _, err := m.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("enqueue %s: %w", taskType, err)
		}
	}
	return nil
}
