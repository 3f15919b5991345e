package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/budget-bot/internal/jobs"
	"github.com/Proton-105/budget-bot/pkg/metrics"
)

// RecordsStatsHandler publishes per-phase record counts as gauges.
type RecordsStatsHandler struct {
	counter metrics.PhaseCounter
	log     *slog.Logger
}

func NewRecordsStatsHandler(counter metrics.PhaseCounter, log *slog.Logger) *RecordsStatsHandler {
	if log == nil {
		log = slog.Default()
	}

	return &RecordsStatsHandler{counter: counter, log: log}
}

func (h *RecordsStatsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.RecordsStatsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "records stats: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	counts, err := h.counter.CountByPhase(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}

	metrics.ObservePhaseCounts(counts)

	total := 0
	for _, count := range counts {
		total += count
	}
	h.log.InfoContext(ctx, "records stats updated",
		slog.Int("records", total),
		slog.Duration("duration", time.Since(start)),
		slog.Time("requested_at", payload.RequestedAt),
	)

	return nil
}
