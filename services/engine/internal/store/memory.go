package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/varunvs7692/chaos-negotiator/pkg/models"
)

// Memory is an in-memory Store used by tests and by components that
// need a throwaway history.
type Memory struct {
	mu       sync.RWMutex
	outcomes []models.DeploymentOutcome

	// FailSaves makes Save return an error, for failure-path tests.
	FailSaves bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save appends one outcome.
func (m *Memory) Save(_ context.Context, o *models.DeploymentOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return fmt.Errorf("memory store: saves disabled")
	}
	m.outcomes = append(m.outcomes, *o)
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]models.DeploymentOutcome, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.outcomes)
	if limit > n {
		limit = n
	}
	out := make([]models.DeploymentOutcome, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.outcomes[i])
	}
	return out, nil
}

// Count returns the number of stored outcomes.
func (m *Memory) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.outcomes)), nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
