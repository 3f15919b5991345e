// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/budget-bot/internal/domain"
	"github.com/Proton-105/budget-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	phaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_transitions_total",
			Help: "Total number of record phase transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	recordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "budget_records",
			Help: "Current number of stored budget records",
		},
	)
	recordsByPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "budget_records_by_phase",
			Help: "Number of budget records per phase",
		},
		[]string{"phase"},
	)
	rateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by backend and result",
		},
		[]string{"backend", "result"},
	)
	rateLimitFailoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_failovers_total",
			Help: "Rate limit checks answered locally because Redis failed",
		},
	)
	circuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Record store circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)

var trackedPhases = []domain.Phase{
	domain.PhaseAwaitingAmount,
	domain.PhaseAwaitingDays,
	domain.PhaseActive,
}

func init() {
	state.RegisterTransitionRecorder(RecordPhaseTransition)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordPhaseTransition tracks record phase changes.
func RecordPhaseTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	phaseTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// RecordRateLimitDecision counts one allowed or rejected update.
func RecordRateLimitDecision(backend string, allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	rateLimitDecisionsTotal.WithLabelValues(backend, result).Inc()
}

// RecordRateLimitFailover counts a check that fell back to local buckets.
func RecordRateLimitFailover() {
	rateLimitFailoversTotal.Inc()
}

// SetCircuitBreakerState publishes the store breaker state.
func SetCircuitBreakerState(state int) {
	circuitBreakerState.Set(float64(state))
}

// ObservePhaseCounts replaces the per-phase record gauges.
func ObservePhaseCounts(counts map[domain.Phase]int) {
	total := 0
	for _, count := range counts {
		total += count
	}
	recordsTotal.Set(float64(total))

	recordsByPhase.Reset()
	for _, phase := range trackedPhases {
		recordsByPhase.WithLabelValues(string(phase)).Set(float64(counts[phase]))
	}
	for phase, count := range counts {
		if phase.IsOnboarding() || phase == domain.PhaseActive {
			continue
		}
		label := string(phase)
		if label == "" {
			label = "unknown"
		}
		recordsByPhase.WithLabelValues(label).Set(float64(count))
	}
}

// PhaseCounter reports how many records are in each phase.
type PhaseCounter interface {
	CountByPhase(ctx context.Context) (map[domain.Phase]int, error)
}

// PhaseCollector periodically gathers phase counts when background jobs
// are not running.
type PhaseCollector struct {
	counter  PhaseCounter
	interval time.Duration
	log      *slog.Logger
}

// NewPhaseCollector builds a collector polling counter every interval.
func NewPhaseCollector(counter PhaseCounter, interval time.Duration, log *slog.Logger) *PhaseCollector {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}

	return &PhaseCollector{counter: counter, interval: interval, log: log}
}

// Run collects immediately and then on every tick until ctx is cancelled.
func (c *PhaseCollector) Run(ctx context.Context) {
	if c == nil || c.counter == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("phase collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect queries the counter once and publishes the result.
func (c *PhaseCollector) Collect(ctx context.Context) error {
	counts, err := c.counter.CountByPhase(ctx)
	if err != nil {
		return err
	}

	ObservePhaseCounts(counts)
	return nil
}
