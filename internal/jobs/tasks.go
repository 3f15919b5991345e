package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeRecordsStats = "records:stats"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues weights the queues a worker consumes.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// RecordsStatsPayload carries the time the stats run was requested.
type RecordsStatsPayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// NewRecordsStatsTask builds a task counting budget records per phase.
// Runs are unique for a minute so a scheduler tick and a startup enqueue
// do not both run.
func NewRecordsStatsTask(requestedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(RecordsStatsPayload{RequestedAt: requestedAt.UTC()})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskTypeRecordsStats,
		payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(1),
		asynq.Unique(time.Minute),
	), nil
}
