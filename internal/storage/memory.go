package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"evoworld/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.Run
	generations map[string][]model.GenerationRecord
	lineage     map[string][]model.LineageRecord
	oee         map[string][]model.OEERecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.generations = make(map[string][]model.GenerationRecord)
	s.lineage = make(map[string][]model.LineageRecord)
	s.oee = make(map[string][]model.OEERecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns every run ordered by start time, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveGenerations(_ context.Context, runID string, records []model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.generations[runID] = append([]model.GenerationRecord(nil), records...)
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationRecord(nil), records...), true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.lineage[runID] = append([]model.LineageRecord(nil), lineage...)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.LineageRecord(nil), lineage...), true, nil
}

func (s *MemoryStore) SaveOEE(_ context.Context, runID string, records []model.OEERecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.oee[runID] = append([]model.OEERecord(nil), records...)
	return nil
}

func (s *MemoryStore) GetOEE(_ context.Context, runID string) ([]model.OEERecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.oee[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.OEERecord(nil), records...), true, nil
}

func sortRuns(runs []model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}
