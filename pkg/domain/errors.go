package domain

import (
	"errors"
)

// Common domain errors
var (
	// ErrNotConnected is returned when sending without an open connection
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned when connecting while a connection is live
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectionClosed is returned when trying to use a closed connection
	ErrConnectionClosed = errors.New("connection closed")

	// ErrEmptyName is returned for empty or whitespace-only counter names
	ErrEmptyName = errors.New("counter name is empty")

	// ErrUnknownCounter is returned when a counter is not in the snapshot
	ErrUnknownCounter = errors.New("unknown counter")

	// ErrNotConfirmed is returned when the user declines a confirmation
	ErrNotConfirmed = errors.New("not confirmed")

	// ErrNoEditSession is returned when committing without an edit session
	ErrNoEditSession = errors.New("no edit session")

	// ErrInvalidIntent is returned for intents with an unknown type
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrClientNotFound is returned when a hub client is not found
	ErrClientNotFound = errors.New("client not found")

	// ErrClientAlreadyExists is returned when registering a duplicate hub client
	ErrClientAlreadyExists = errors.New("client already exists")

	// ErrHubStopped is returned when trying to use a hub that has been stopped
	ErrHubStopped = errors.New("hub stopped")
)
