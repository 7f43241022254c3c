package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager puts tasks on the queue.
type Manager interface {
	// Enqueue returns (nil, nil) when a unique task of the same kind is already queued.
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client enqueuer
	log    *slog.Logger
}

// NewManager returns a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return newManager(asynq.NewClient(redisOpt), log)
}

func newManager(client enqueuer, log *slog.Logger) *manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{client: client, log: log}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		m.log.DebugContext(ctx, "task already queued", slog.String("task_type", task.Type()))
		return nil, nil
	case err != nil:
		return nil, err
	}

	m.log.DebugContext(ctx, "task enqueued",
		slog.String("task_type", task.Type()),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
