package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryRunStore implements RunStore for testing and one-off runs.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRunStore creates a new in-memory store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*Run)}
}

// SaveRun stores a deep copy of run.
func (s *MemoryRunStore) SaveRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	c, err := copyRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = c
	return nil
}

// GetRun returns a copy of the stored run.
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyRun(run)
}

// ListRuns returns summaries, newest first.
func (s *MemoryRunStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		if opts.Name != "" && run.Name != opts.Name {
			continue
		}
		summaries = append(summaries, run.Summary())
	}
	sortSummaries(summaries)
	if opts.Limit > 0 && len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}
	return summaries, nil
}

// DeleteRun removes a run.
func (s *MemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryRunStore) Close() error {
	return nil
}

// sortSummaries orders newest first, breaking ties by ID.
func sortSummaries(summaries []RunSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
}

func copyRun(run *Run) (*Run, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("copying run %s: %w", run.ID, err)
	}
	var c Run
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("copying run %s: %w", run.ID, err)
	}
	return &c, nil
}
