// Package repository implements the budget record stores.
package repository

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/domain"
	errors "github.com/Proton-105/budget-bot/internal/errors"
)

// PhaseCounter reports how many records are in each phase.
type PhaseCounter interface {
	CountByPhase(ctx context.Context) (map[domain.Phase]int, error)
}

// ResilientStore retries transient failures of the wrapped store and stops
// calling it while the circuit breaker is open.
type ResilientStore struct {
	next    budget.Store
	breaker *errors.CircuitBreaker
}

var _ budget.Store = (*ResilientStore)(nil)

// NewResilientStore wraps next. A nil breaker gets the default settings.
func NewResilientStore(next budget.Store, breaker *errors.CircuitBreaker) *ResilientStore {
	if breaker == nil {
		breaker = errors.NewCircuitBreaker(errors.WithFailurePredicate(isStoreFailure))
	}

	return &ResilientStore{next: next, breaker: breaker}
}

// NewStoreBreaker returns a breaker that ignores missing-record results.
func NewStoreBreaker(opts ...errors.BreakerOption) *errors.CircuitBreaker {
	return errors.NewCircuitBreaker(append([]errors.BreakerOption{errors.WithFailurePredicate(isStoreFailure)}, opts...)...)
}

func (s *ResilientStore) Get(ctx context.Context, userID int64) (*domain.Record, error) {
	var rec *domain.Record
	err := s.do(ctx, "get record", func() error {
		var err error
		rec, err = s.next.Get(ctx, userID)
		return err
	})
	return rec, err
}

func (s *ResilientStore) Put(ctx context.Context, rec *domain.Record) error {
	return s.do(ctx, "put record", func() error {
		return s.next.Put(ctx, rec)
	})
}

func (s *ResilientStore) Delete(ctx context.Context, userID int64) error {
	return s.do(ctx, "delete record", func() error {
		return s.next.Delete(ctx, userID)
	})
}

// CountByPhase is answered by the wrapped store when it supports it.
func (s *ResilientStore) CountByPhase(ctx context.Context) (map[domain.Phase]int, error) {
	return countByPhase(ctx, s.next)
}

// HealthCheck reports an open breaker as unhealthy.
func (s *ResilientStore) HealthCheck(context.Context) error {
	if s.breaker.State() == errors.StateOpen {
		return errors.ErrCircuitOpen
	}
	return nil
}

func (s *ResilientStore) do(ctx context.Context, action string, fn func() error) error {
	err := errors.WithRetry(ctx, func() error {
		callErr := s.breaker.Call(fn)
		switch {
		case callErr == nil, stdErrors.Is(callErr, budget.ErrRecordNotFound):
			return callErr
		case stdErrors.Is(callErr, errors.ErrCircuitOpen), stdErrors.Is(callErr, errors.ErrHalfOpenTooManyRequests):
			// Not retryable: the breaker is shedding load.
			return &unavailableError{cause: callErr}
		default:
			return errors.NewDatabaseError(fmt.Errorf("%s: %w", action, callErr))
		}
	})

	var unavailable *unavailableError
	if stdErrors.As(err, &unavailable) {
		appErr := errors.NewDatabaseError(fmt.Errorf("%s: %w", action, unavailable.cause))
		appErr.Retryable = false
		return appErr
	}

	return err
}

type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string { return e.cause.Error() }
func (e *unavailableError) Unwrap() error { return e.cause }

func isStoreFailure(err error) bool {
	return err != nil && !stdErrors.Is(err, budget.ErrRecordNotFound)
}

func countByPhase(ctx context.Context, store budget.Store) (map[domain.Phase]int, error) {
	counter, ok := store.(PhaseCounter)
	if !ok {
		return nil, fmt.Errorf("store %T cannot count records", store)
	}
	return counter.CountByPhase(ctx)
}
