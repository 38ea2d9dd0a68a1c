// Package counter keeps the client's view of the server's counters and turns
// user actions into intents.
package counter

import (
	"sync"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/pkg/domain"
)

// Engine holds the snapshot. Inbound events are its only mutation path.
type Engine struct {
	mu       sync.RWMutex
	counters domain.Snapshot
	eventBus eventbus.Bus
}

// NewEngine creates an empty engine. bus may be nil.
func NewEngine(bus eventbus.Bus) *Engine {
	return &Engine{
		counters: make(domain.Snapshot),
		eventBus: bus,
	}
}

// Apply folds one inbound event into the snapshot
func (e *Engine) Apply(event domain.InboundEvent) {
	switch ev := event.(type) {
	case domain.CounterUpdated:
		e.mu.Lock()
		e.counters[ev.Name] = ev.Value
		e.mu.Unlock()
		e.publish(eventbus.EventCounterUpdated, ev)

	case domain.CounterDeleted:
		e.mu.Lock()
		_, ok := e.counters[ev.Name]
		delete(e.counters, ev.Name)
		e.mu.Unlock()
		if ok {
			e.publish(eventbus.EventCounterDeleted, ev)
		}
	}
}

// Reset drops every counter
func (e *Engine) Reset() {
	e.mu.Lock()
	e.counters = make(domain.Snapshot)
	e.mu.Unlock()
	e.publish(eventbus.EventSnapshotReset, nil)
}

// Snapshot returns a copy of the current counters
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters.Clone()
}

// Value returns the value of name and whether it exists
func (e *Engine) Value(name domain.CounterName) (int64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.counters[name]
	return v, ok
}

// Has reports whether name exists
func (e *Engine) Has(name domain.CounterName) bool {
	_, ok := e.Value(name)
	return ok
}

// Len returns the number of counters
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.counters)
}

func (e *Engine) publish(eventType eventbus.EventType, data any) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(eventbus.NewEvent(eventType, "counter-engine", data))
}
