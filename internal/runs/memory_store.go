package runs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
)

// MemoryStore keeps runs in process memory. Used when DATABASE_URL is empty.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*contracts.BacktestResult
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*contracts.BacktestResult)}
}

// Create implements contracts.RunStore
func (s *MemoryStore) Create(ctx context.Context, run *contracts.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.RunID]; ok {
		return fmt.Errorf("run %s already exists", run.RunID)
	}
	s.runs[run.RunID] = run.Clone()
	return nil
}

// MarkRunning implements contracts.RunStore
func (s *MemoryStore) MarkRunning(ctx context.Context, runID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.open(runID)
	if err != nil {
		return err
	}
	run.Status = contracts.StatusRunning
	run.StartedAt = &at
	return nil
}

// AppendSnapshot implements contracts.RunStore
func (s *MemoryStore) AppendSnapshot(ctx context.Context, runID string, snap contracts.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.open(runID)
	if err != nil {
		return err
	}
	if n := len(run.Timeline); n > 0 && run.Timeline[n-1].Step >= snap.Step {
		return fmt.Errorf("run %s: snapshot step %d is not after %d", runID, snap.Step, run.Timeline[n-1].Step)
	}
	run.Timeline = append(run.Timeline, snap.Clone())
	return nil
}

// Finalize implements contracts.RunStore.
// Snapshots not yet appended are added; recorded ones are never rewritten.
func (s *MemoryStore) Finalize(ctx context.Context, final *contracts.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.open(final.RunID)
	if err != nil {
		return err
	}

	for _, snap := range final.Timeline[min(len(run.Timeline), len(final.Timeline)):] {
		run.Timeline = append(run.Timeline, snap.Clone())
	}
	run.Status = final.Status
	run.Message = final.Message
	run.Error = final.Error
	run.Note = final.Note
	if final.Metrics != nil {
		m := *final.Metrics
		run.Metrics = &m
	}
	if run.StartedAt == nil && final.StartedAt != nil {
		t := *final.StartedAt
		run.StartedAt = &t
	}
	finished := time.Now().UTC()
	if final.FinishedAt != nil {
		finished = *final.FinishedAt
	}
	run.FinishedAt = &finished
	return nil
}

// Get implements contracts.RunStore
func (s *MemoryStore) Get(ctx context.Context, runID string) (*contracts.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, contracts.ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns up to limit runs, newest first, without their timelines
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*contracts.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.BacktestResult, 0, len(s.runs))
	for _, run := range s.runs {
		item := run.Clone()
		item.Timeline = make([]contracts.Snapshot, 0)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteFinishedBefore implements contracts.RunStore
func (s *MemoryStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, run := range s.runs {
		if run.Status.Terminal() && run.FinishedAt != nil && run.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
			deleted++
		}
	}
	return deleted, nil
}

// open returns a run that may still change; callers hold mu
func (s *MemoryStore) open(runID string) (*contracts.BacktestResult, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, contracts.ErrRunNotFound
	}
	if run.Status.Terminal() {
		return nil, contracts.ErrRunFinalized
	}
	return run, nil
}
