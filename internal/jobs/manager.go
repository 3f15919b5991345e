package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	client := asynq.NewClient(redisOpt)

	return &manager{
		client: client,
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}

	m.log.DebugContext(ctx, "jobs: task enqueued", slog.String("task_type", task.Type()), slog.String("task_id", info.ID))
	return info, nil
}

// EnqueueRecordsStats requests an immediate stats run. A run already
// queued within the uniqueness window is not an error.
func EnqueueRecordsStats(ctx context.Context, m Manager, now time.Time) error {
	task, err := NewRecordsStatsTask(now)
	if err != nil {
		return err
	}

	if _, err := m.Enqueue(ctx, task); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
