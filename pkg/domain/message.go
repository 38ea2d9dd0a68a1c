package domain

// MessageType is the `type` discriminator of a wire message
type MessageType string

// Outbound (client to server) message types
const (
	MessageTypeCreate    MessageType = "create"
	MessageTypeIncrement MessageType = "increment"
	MessageTypeDecrement MessageType = "decrement"
	MessageTypeSet       MessageType = "set"
	MessageTypeDelete    MessageType = "delete"
)

// Inbound (server to client) message types
const (
	MessageTypeCounter MessageType = "counter"
	MessageTypeDeleted MessageType = "deleted"
)

// IsIntent reports whether t is one of the outbound intent types.
func (t MessageType) IsIntent() bool {
	switch t {
	case MessageTypeCreate, MessageTypeIncrement, MessageTypeDecrement, MessageTypeSet, MessageTypeDelete:
		return true
	default:
		return false
	}
}

// CarriesValue reports whether messages of type t have a value field.
func (t MessageType) CarriesValue() bool {
	switch t {
	case MessageTypeCreate, MessageTypeSet, MessageTypeCounter:
		return true
	default:
		return false
	}
}
