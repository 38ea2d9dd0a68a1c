package domain

import (
	"context"
)

// Client represents a connected peer as seen by the server
type Client interface {
	// ID returns the unique identifier of the client
	ID() string

	// Send queues a message for the client
	Send(ctx context.Context, message []byte) error

	// Close closes the client connection
	Close() error

	// Context is cancelled once the client is gone
	Context() context.Context
}

// Hub fans messages out to every connected client
type Hub interface {
	// Start starts the hub
	Start(ctx context.Context) error

	// Stop stops the hub gracefully
	Stop() error

	// Register registers a new client
	Register(client Client) error

	// Unregister removes a client
	Unregister(clientID string) error

	// Broadcast sends a message to all connected clients
	Broadcast(message []byte) error

	// SendTo sends a message to a specific client
	SendTo(clientID string, message []byte) error

	// GetClient retrieves a client by ID
	GetClient(clientID string) (Client, bool)

	// Stats returns hub statistics
	Stats() HubStats
}

// HubStats provides statistics about the hub
type HubStats struct {
	ConnectedClients int     `json:"connected_clients"`
	MessagesSent     int64   `json:"messages_sent"`
	MessagesReceived int64   `json:"messages_received"`
	Uptime           float64 `json:"uptime_seconds"`
}
