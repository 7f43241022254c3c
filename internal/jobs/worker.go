package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-swap/pkg/logger"
)

// Worker registers task handlers and runs the asynq server that executes them.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

// WorkerOptions tunes the asynq server. Zero values use the defaults below.
type WorkerOptions struct {
	Concurrency     int
	ShutdownTimeout time.Duration
}

const (
	defaultConcurrency     = 4
	defaultShutdownTimeout = 10 * time.Second
)

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

// NewWorker builds a Worker over redisOpt consuming queues by priority.
// Scans claim orders through the store, so overlapping scans of one kind are safe; concurrency only bounds load.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, opts WorkerOptions, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	log = log.With(slog.String("component", "jobs"))

	mux := asynq.NewServeMux()
	mux.Use(traceTask(log))

	return &worker{
		server: asynq.NewServer(redisOpt, asynq.Config{
			Queues:          queues,
			Concurrency:     opts.Concurrency,
			ShutdownTimeout: opts.ShutdownTimeout,
			Logger:          newAsynqLogger(log),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.ErrorContext(ctx, "task failed", slog.String("task_type", task.Type()), slog.Any("error", err))
			}),
		}),
		mux: mux,
		log: log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks until the server stops.
func (w *worker) Run() error {
	w.log.Info("worker started")
	return w.server.Run(w.mux)
}

// Shutdown waits up to the shutdown timeout for running tasks.
func (w *worker) Shutdown() {
	w.log.Info("worker shutting down")
	w.server.Shutdown()
}

// traceTask tags the task context with its asynq ID as correlation ID and logs the run.
func traceTask(log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			id, _ := asynq.GetTaskID(ctx)
			ctx = logger.WithCorrelationID(ctx, id)
			started := time.Now()

			err := next.ProcessTask(ctx, t)

			log.DebugContext(ctx, "task processed",
				slog.String("task_type", t.Type()),
				slog.Duration("duration", time.Since(started)),
				slog.Bool("ok", err == nil),
			)
			return err
		})
	}
}
