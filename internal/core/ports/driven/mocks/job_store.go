package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/opreq-core/internal/core/domain"
)

// MockJobStore is a mock implementation of JobStore for testing
type MockJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ImportJob
}

// NewMockJobStore creates a new MockJobStore
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[string]*domain.ImportJob)}
}

func (m *MockJobStore) Save(ctx context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockJobStore) Get(ctx context.Context, id string) (*domain.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *MockJobStore) GetDocument(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Document, nil
}

func (m *MockJobStore) List(ctx context.Context, group string, limit int) ([]*domain.ImportJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ImportJob
	for _, job := range m.jobs {
		if job.Group == group {
			result = append(result, job)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockJobStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, job := range m.jobs {
		if job.Finished() && job.EndedAt != nil && job.EndedAt.Before(cutoff) {
			delete(m.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Reset clears all data
func (m *MockJobStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]*domain.ImportJob)
}
