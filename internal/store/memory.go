package store

import (
	"sync"

	"github.com/royglick/laboneq/pkg/workflow"
)

// MemoryStore is a goroutine-safe RunStore backed by a map.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*workflow.Run
}

var _ RunStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*workflow.Run)}
}

func (s *MemoryStore) SaveRun(run *workflow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = snapshot(run)
	return nil
}

func (s *MemoryStore) UpdateRun(run *workflow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	s.runs[run.ID] = snapshot(run)
	return nil
}

func (s *MemoryStore) GetRun(id string) (*workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return snapshot(run), nil
}

func (s *MemoryStore) ListRuns(filter RunFilter) ([]*workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*workflow.Run
	for _, run := range s.runs {
		if filter.Workflow != "" && run.Workflow != filter.Workflow {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, snapshot(run))
	}
	return result, nil
}

// snapshot copies the run so callers cannot mutate stored state.
func snapshot(run *workflow.Run) *workflow.Run {
	c := *run
	c.Tasks = append([]workflow.TaskRecord(nil), run.Tasks...)
	if run.Input != nil {
		in := make(map[string]any, len(run.Input))
		for k, v := range run.Input {
			in[k] = v
		}
		c.Input = in
	}
	return &c
}
