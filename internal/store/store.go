// Package store holds the dashboard's in-memory expense snapshot.
//
// The snapshot is only ever replaced whole. Readers get copies and never see
// a half-applied update.
package store

import (
	"sync"
	"time"

	"despesas/internal/core"
)

// Snapshot is a read-only view of the store at one generation.
type Snapshot struct {
	Generation     uint64
	Records        []core.Expense
	RemoteForecast *core.RemoteForecast
	UpdatedAt      time.Time
}

// Store owns the current snapshot. The refresh pipeline is its only writer.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	records    []core.Expense
	forecast   *core.RemoteForecast
	updatedAt  time.Time
	now        func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// Replace swaps in a new record set and returns the new generation.
func (s *Store) Replace(records []core.Expense) uint64 {
	cp := make([]core.Expense, len(records))
	copy(cp, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.records = cp
	s.updatedAt = s.now()
	return s.generation
}

// Commit replaces the records and the remote forecast together. A nil
// forecast clears the stored one.
func (s *Store) Commit(records []core.Expense, forecast *core.RemoteForecast) uint64 {
	cp := make([]core.Expense, len(records))
	copy(cp, records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.records = cp
	s.forecast = cloneForecast(forecast)
	s.updatedAt = s.now()
	return s.generation
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]core.Expense, len(s.records))
	copy(records, s.records)
	return Snapshot{
		Generation:     s.generation,
		Records:        records,
		RemoteForecast: cloneForecast(s.forecast),
		UpdatedAt:      s.updatedAt,
	}
}

// Generation returns the generation of the current snapshot. Zero means no
// snapshot has been loaded yet.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneForecast(f *core.RemoteForecast) *core.RemoteForecast {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Months = append([]core.MonthBucket(nil), f.Months...)
	return &cp
}
