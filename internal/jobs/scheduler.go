package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultStatsCron runs the records stats task every five minutes.
const DefaultStatsCron = "*/5 * * * *"

type Scheduler interface {
	RegisterTasks(statsCron string) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.WarnLevel,
		}),
		log: log,
	}
}

func (s *scheduler) RegisterTasks(statsCron string) error {
	if statsCron == "" {
		statsCron = DefaultStatsCron
	}

	task, err := NewRecordsStatsTask(time.Now())
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(statsCron, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered records stats task", slog.String("cron", statsCron))

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
