package domain

import (
	"strings"
)

// Intent is a client request to mutate a counter. It is a value type and
// carries no acknowledgment identifier; the client learns the outcome only
// through inbound events.
type Intent struct {
	Type  MessageType
	Name  CounterName
	Value int64 // meaningful for create and set only
}

// CreateIntent requests a new counter with an initial value.
func CreateIntent(name CounterName, initialValue int64) Intent {
	return Intent{Type: MessageTypeCreate, Name: name, Value: initialValue}
}

// IncrementIntent requests adding one to a counter.
func IncrementIntent(name CounterName) Intent {
	return Intent{Type: MessageTypeIncrement, Name: name}
}

// DecrementIntent requests subtracting one from a counter.
func DecrementIntent(name CounterName) Intent {
	return Intent{Type: MessageTypeDecrement, Name: name}
}

// SetIntent requests overwriting a counter's value.
func SetIntent(name CounterName, value int64) Intent {
	return Intent{Type: MessageTypeSet, Name: name, Value: value}
}

// DeleteIntent requests removing a counter.
func DeleteIntent(name CounterName) Intent {
	return Intent{Type: MessageTypeDelete, Name: name}
}

// Validate reports intents that could never have been built by the
// constructors above.
func (i Intent) Validate() error {
	if !i.Type.IsIntent() {
		return ErrInvalidIntent
	}
	if i.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// IsBlank reports whether name is empty or whitespace only. Only new names
// are held to this; existing names are opaque.
func IsBlank(name CounterName) bool {
	return strings.TrimSpace(string(name)) == ""
}
