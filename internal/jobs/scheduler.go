package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

// Intervals are the scan cadences.
type Intervals struct {
	Limit time.Duration
	DCA   time.Duration
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	intervals      Intervals
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, intervals Intervals, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newAsynqLogger(log)}),
		intervals:      intervals,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	entries := []struct {
		taskType string
		interval time.Duration
	}{
		{TaskTypeScanLimit, s.intervals.Limit},
		{TaskTypeScanDCA, s.intervals.DCA},
	}

	for _, e := range entries {
		if e.interval <= 0 {
			return fmt.Errorf("scheduler: %s interval must be positive", e.taskType)
		}

		task, err := NewScanTask(e.taskType, e.interval)
		if err != nil {
			return err
		}

		if _, err := s.asynqScheduler.Register(CronSpec(e.interval), task); err != nil {
			return fmt.Errorf("scheduler: register %s: %w", e.taskType, err)
		}

		s.log.InfoContext(context.Background(), "scheduler: registered scan task",
			slog.String("task_type", e.taskType),
			slog.Duration("interval", e.interval),
		)
	}

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}

// CronSpec renders interval as an asynq "@every" spec.
func CronSpec(interval time.Duration) string {
	return "@every " + interval.String()
}
