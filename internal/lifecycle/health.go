package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/budget-bot/internal/health"
)

// ErrDraining is returned by Readiness once shutdown has begun.
var ErrDraining = errors.New("shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from the process itself and readiness from the
// registered component checks.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

// NewProbes creates a new Probes instance. A nil checker reports ready.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// MarkDraining makes Readiness fail for the rest of the process lifetime.
func (p *Probes) MarkDraining() {
	if p.draining.CompareAndSwap(false, true) {
		p.log.Info("readiness probe switched to draining")
	}
}

// Liveness reports success while the process is able to serve HTTP.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.DebugContext(ctx, "liveness probe called")
	return nil
}

// Readiness fails while draining or when any component check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	_, err := p.readiness(ctx)
	return err
}

func (p *Probes) readiness(ctx context.Context) (map[string]string, error) {
	if p.draining.Load() {
		return nil, ErrDraining
	}
	if p.checker == nil {
		return map[string]string{}, nil
	}

	results := p.checker.Check(ctx)
	if health.Healthy(results) {
		return results, nil
	}

	failed := make([]string, 0, len(results))
	for name, status := range results {
		if status != health.StatusOK {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	return results, fmt.Errorf("unhealthy components: %s", strings.Join(failed, ", "))
}

type probeResponse struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler serves the liveness probe.
func (p *Probes) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, nil, p.Liveness(r.Context()))
	})
}

// ReadinessHandler serves the readiness probe with per-component details.
func (p *Probes) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results, err := p.readiness(r.Context())
		writeProbe(w, results, err)
	})
}

func writeProbe(w http.ResponseWriter, checks map[string]string, err error) {
	resp := probeResponse{Status: "ok", Checks: checks}
	code := http.StatusOK
	if err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
