// Package store holds job records keyed by ID. The enhancement worker
// is the only writer after job creation; every read hands out an
// independent snapshot, never a shared pointer.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/tonelift/api/internal/model"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// JobStore persists job records.
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// MemoryStore keeps jobs in process memory. Used when Redis is not
// available and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string][]byte)}
}

// Save stores a serialized copy of the job.
func (s *MemoryStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[job.ID] = data
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot; mutating it never affects the stored record.
func (s *MemoryStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	data, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
