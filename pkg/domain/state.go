package domain

// ConnectionState represents the lifecycle state of the client connection.
type ConnectionState int

const (
	// StateDisconnected means there is no connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the connection is open and sends are accepted.
	StateConnected

	// StateErrored means the last connection attempt or connection failed.
	StateErrored
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StateChange describes one connection state transition.
type StateChange struct {
	Old ConnectionState
	New ConnectionState
	Err error // Optional error that caused the change
}
