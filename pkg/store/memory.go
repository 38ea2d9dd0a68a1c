package store

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/pkg/domain"
)

// Memory is an in-process Store
type Memory struct {
	mu       sync.RWMutex
	counters domain.Snapshot
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{counters: make(domain.Snapshot)}
}

// Set implements Store
func (m *Memory) Set(ctx context.Context, name domain.CounterName, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] = value
	return nil
}

// Add implements Store
func (m *Memory) Add(ctx context.Context, name domain.CounterName, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
	return m.counters[name], nil
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, name domain.CounterName) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.counters[name]
	delete(m.counters, name)
	return ok, nil
}

// All implements Store
func (m *Memory) All(ctx context.Context) (domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters.Clone(), nil
}

// Close implements Store
func (m *Memory) Close() error {
	return nil
}
