package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdown_RunsPhaseHooksInParallel(t *testing.T) {
	shutdown := NewShutdown(testLogger())

	var started atomic.Int32
	release := make(chan struct{})
	for _, name := range []string{"telegram", "jobs"} {
		shutdown.Register(PhaseDrain, name, func(context.Context) error {
			if started.Add(1) == 2 {
				close(release)
			}
			select {
			case <-release:
				return nil
			case <-time.After(time.Second):
				return errors.New("hooks ran sequentially")
			}
		})
	}
	shutdown.Register(PhaseDrain, "nil", nil)

	require.NoError(t, shutdown.Execute(context.Background()))
	assert.Equal(t, int32(2), started.Load())
}

func TestShutdown_ClosesAfterDrain(t *testing.T) {
	shutdown := NewShutdown(testLogger())

	var drained atomic.Bool
	var closedAfterDrain atomic.Bool
	shutdown.Register(PhaseClose, "redis", func(context.Context) error {
		closedAfterDrain.Store(drained.Load())
		return nil
	})
	shutdown.Register(PhaseDrain, "telegram", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		drained.Store(true)
		return nil
	})

	require.NoError(t, shutdown.Execute(context.Background()))
	assert.True(t, closedAfterDrain.Load())
}

func TestShutdown_RunSinglePhaseOnce(t *testing.T) {
	shutdown := NewShutdown(testLogger())

	var closes, drains atomic.Int32
	shutdown.Register(PhaseClose, "database", func(context.Context) error {
		closes.Add(1)
		return nil
	})
	shutdown.Register(PhaseDrain, "telegram", func(context.Context) error {
		drains.Add(1)
		return nil
	})

	require.NoError(t, shutdown.Run(context.Background(), PhaseClose))
	require.NoError(t, shutdown.Execute(context.Background()))

	assert.Equal(t, int32(1), closes.Load())
	assert.Equal(t, int32(1), drains.Load())
}

func TestShutdown_CollectsErrors(t *testing.T) {
	shutdown := NewShutdown(testLogger())
	shutdown.Register(PhaseClose, "redis", func(context.Context) error { return nil })
	shutdown.Register(PhaseClose, "database", func(context.Context) error { return errors.New("close failed") })
	shutdown.Register(PhaseDrain, "jobs", func(context.Context) error { return errors.New("worker stuck") })

	err := shutdown.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, "drain: jobs: worker stuck\nclose: database: close failed", err.Error())
}

func TestProbes_Readiness(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	checker := health.NewChecker(testLogger())
	checker.AddCheck("store", health.CheckFunc(func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("circuit open")
	}))

	probes := NewProbes(checker, testLogger())
	require.NoError(t, probes.Readiness(context.Background()))

	healthy.Store(false)
	err := probes.Readiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")

	healthy.Store(true)
	probes.MarkDraining()
	assert.ErrorIs(t, probes.Readiness(context.Background()), ErrDraining)
	assert.NoError(t, probes.Liveness(context.Background()))
}

func TestProbes_Handlers(t *testing.T) {
	checker := health.NewChecker(testLogger())
	checker.AddCheck("redis", health.CheckFunc(func(context.Context) error { return errors.New("connection refused") }))
	probes := NewProbes(checker, testLogger())

	rec := httptest.NewRecorder()
	probes.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body probeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "connection refused", body.Checks["redis"])

	rec = httptest.NewRecorder()
	probes.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
