package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps steps in process memory. It backs tests and single-process development runs.
type MemoryStorage struct {
	mu    sync.Mutex
	steps map[int64]*Step
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{steps: make(map[int64]*Step)}
}

// Get returns a copy of the stored step.
func (m *MemoryStorage) Get(_ context.Context, userID int64) (*Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	step, ok := m.steps[userID]
	if !ok {
		return nil, ErrStepNotFound
	}
	return step.Clone(), nil
}

// Set stores a copy of step.
func (m *MemoryStorage) Set(_ context.Context, userID int64, step *Step) error {
	if step == nil {
		return errors.New("step is nil")
	}

	stored := step.Clone()
	stored.UserID = userID
	stored.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.steps[userID] = stored
	m.mu.Unlock()

	return nil
}

// Clear removes the user's step.
func (m *MemoryStorage) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.steps, userID)
	m.mu.Unlock()

	return nil
}

// All returns copies of every step ordered by user id.
func (m *MemoryStorage) All(_ context.Context) ([]*Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Step, 0, len(m.steps))
	for _, step := range m.steps {
		out = append(out, step.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	return out, nil
}
