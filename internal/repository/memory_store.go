package repository

import (
	"context"
	"sync"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/domain"
)

// MemoryStore keeps records in process. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*domain.Record
}

var _ budget.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]*domain.Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, budget.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// CountByPhase returns the number of records per phase.
func (s *MemoryStore) CountByPhase(_ context.Context) (map[domain.Phase]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Phase]int)
	for _, rec := range s.records {
		counts[rec.CurrentPhase()]++
	}
	return counts, nil
}
