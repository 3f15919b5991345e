package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Shutdown runs hooks phase by phase. Hooks of one phase run concurrently.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named hook to phase. A hook that depends on another hook
// of the same phase must wrap both steps in one function.
func (s *Shutdown) Register(phase Phase, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Phase: phase, Fn: fn})
}

// Execute runs every phase in order. A failing phase does not stop the
// later ones; all errors are returned together.
func (s *Shutdown) Execute(ctx context.Context) error {
	start := time.Now()
	s.log.InfoContext(ctx, "shutdown sequence started")

	var errs []error
	for _, phase := range phases {
		if err := s.Run(ctx, phase); err != nil {
			errs = append(errs, err)
		}
	}

	s.log.InfoContext(ctx, "shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))
	return errors.Join(errs...)
}

// Run executes the hooks of a single phase and waits for them. Each hook
// runs at most once across Run and Execute calls.
func (s *Shutdown) Run(ctx context.Context, phase Phase) error {
	hooks := s.take(phase)
	if len(hooks) == 0 {
		return nil
	}

	log := s.log.With(slog.String("phase", phase.String()))
	log.InfoContext(ctx, "shutdown phase started", slog.Int("hook_count", len(hooks)))

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []string
	)
	for _, hook := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := hook.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "shutdown hook failed", slog.String("hook", hook.Name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", hook.Name, err))
				errMu.Unlock()
				return
			}
			log.InfoContext(ctx, "shutdown hook completed", slog.String("hook", hook.Name))
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("%s: %s", phase, strings.Join(errs, "; "))
	}
	return nil
}

func (s *Shutdown) take(phase Phase) []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		taken []Hook
		rest  []Hook
	)
	for _, hook := range s.hooks {
		if hook.Phase == phase {
			taken = append(taken, hook)
		} else {
			rest = append(rest, hook)
		}
	}
	s.hooks = rest
	return taken
}
