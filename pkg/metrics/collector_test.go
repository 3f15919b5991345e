package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/internal/domain"
	"github.com/Proton-105/budget-bot/internal/state"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

type staticCounter struct {
	counts map[domain.Phase]int
	err    error
}

func (s staticCounter) CountByPhase(context.Context) (map[domain.Phase]int, error) {
	return s.counts, s.err
}

func TestPhaseCollector_PublishesCounts(t *testing.T) {
	collector := NewPhaseCollector(staticCounter{counts: map[domain.Phase]int{
		domain.PhaseActive:         3,
		domain.PhaseAwaitingAmount: 1,
	}}, time.Minute, nil)

	require.NoError(t, collector.Collect(context.Background()))

	assert.Equal(t, 4.0, gaugeValue(t, recordsTotal))
	assert.Equal(t, 3.0, gaugeValue(t, recordsByPhase.WithLabelValues("active")))
	assert.Equal(t, 1.0, gaugeValue(t, recordsByPhase.WithLabelValues("awaiting_amount")))
	assert.Equal(t, 0.0, gaugeValue(t, recordsByPhase.WithLabelValues("awaiting_days")))
}

func TestPhaseCollector_PropagatesErrors(t *testing.T) {
	collector := NewPhaseCollector(staticCounter{err: errors.New("db down")}, time.Minute, nil)

	assert.Error(t, collector.Collect(context.Background()))
}

func TestTransitionsAreRecorded(t *testing.T) {
	counter := phaseTransitionsTotal.WithLabelValues("awaiting_days", "active")
	before := counterValue(t, counter)

	state.RecordTransition(domain.PhaseAwaitingDays, domain.PhaseActive)
	state.RecordTransition(domain.PhaseActive, domain.PhaseActive)

	assert.Equal(t, before+1, counterValue(t, counter))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordCommand("status", "ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bot_commands_total{command="status",status="ok"}`)
}

func TestRecordRateLimitDecision(t *testing.T) {
	rejected := rateLimitDecisionsTotal.WithLabelValues("memory", "rejected")
	before := counterValue(t, rejected)
	failovers := counterValue(t, rateLimitFailoversTotal)

	RecordRateLimitDecision("memory", false)
	RecordRateLimitFailover()

	assert.InDelta(t, before+1, counterValue(t, rejected), 1e-9)
	assert.InDelta(t, failovers+1, counterValue(t, rateLimitFailoversTotal), 1e-9)
}
