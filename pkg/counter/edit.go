package counter

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

// ValueSetter dispatches a set intent
type ValueSetter interface {
	SetValue(ctx context.Context, name domain.CounterName, value int64) error
}

// EditSession is an in-progress value edit. Pending is never applied to the
// snapshot.
type EditSession struct {
	Name    domain.CounterName
	Pending int64
}

// EditTracker holds at most one edit session
type EditTracker struct {
	setter ValueSetter

	mu      sync.Mutex
	session *EditSession
}

// NewEditTracker creates an idle tracker committing through setter
func NewEditTracker(setter ValueSetter) *EditTracker {
	return &EditTracker{setter: setter}
}

// Begin starts editing name, replacing any current session
func (t *EditTracker) Begin(name domain.CounterName, currentValue int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = &EditSession{Name: name, Pending: currentValue}
}

// Update changes the pending value. It does nothing when idle.
func (t *EditTracker) Update(value int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.Pending = value
	}
}

// Commit dispatches the pending value and ends the session whatever the
// outcome.
func (t *EditTracker) Commit(ctx context.Context) error {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.mu.Unlock()

	if session == nil {
		return errors.Wrap(domain.ErrNoEditSession, errors.ErrorTypeValidation, "NO_EDIT_SESSION", "nothing to commit")
	}
	return t.setter.SetValue(ctx, session.Name, session.Pending)
}

// Cancel ends the session without dispatching
func (t *EditTracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = nil
}

// Active returns the current session
func (t *EditTracker) Active() (EditSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return EditSession{}, false
	}
	return *t.session, true
}

// End clears the session if it edits name
func (t *EditTracker) End(name domain.CounterName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil && t.session.Name == name {
		t.session = nil
	}
}
