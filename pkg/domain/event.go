package domain

// InboundEvent is a server-produced event. The set of implementations is
// closed: CounterUpdated, CounterDeleted and Unknown.
type InboundEvent interface {
	// Type returns the wire discriminator of the event
	Type() MessageType

	inboundEvent()
}

// CounterUpdated carries the authoritative value of a counter, covering both
// creation and every later mutation.
type CounterUpdated struct {
	Name  CounterName
	Value int64
}

// CounterDeleted reports that a counter no longer exists.
type CounterDeleted struct {
	Name CounterName
}

// Unknown is an event with a discriminator this client does not understand.
type Unknown struct {
	Kind string
}

func (CounterUpdated) Type() MessageType { return MessageTypeCounter }
func (CounterDeleted) Type() MessageType { return MessageTypeDeleted }
func (u Unknown) Type() MessageType      { return MessageType(u.Kind) }

func (CounterUpdated) inboundEvent() {}
func (CounterDeleted) inboundEvent() {}
func (Unknown) inboundEvent()        {}
