package websocket

import (
	"net/http"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
)

// ServerOptions represents websocket server options
type ServerOptions struct {
	CheckOrigin func(r *http.Request) bool
	Hub         domain.Hub
	Logger      *logging.Logger
	EventBus    eventbus.Bus
	Router      MessageRouter
	Conn        ConnOptions
}

// ServerOption is a function that configures ServerOptions
type ServerOption func(*ServerOptions)

// WithHub sets the hub for the server
func WithHub(hub domain.Hub) ServerOption {
	return func(o *ServerOptions) {
		o.Hub = hub
	}
}

// WithLogger sets the logger for the server
func WithLogger(logger *logging.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithEventBus sets the event bus for the server
func WithEventBus(eventBus eventbus.Bus) ServerOption {
	return func(o *ServerOptions) {
		o.EventBus = eventBus
	}
}

// WithCheckOrigin sets the check origin function
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOption {
	return func(o *ServerOptions) {
		o.CheckOrigin = checkOrigin
	}
}

// WithRouter sets the message router for the server
func WithRouter(router MessageRouter) ServerOption {
	return func(o *ServerOptions) {
		o.Router = router
	}
}

// WithConnOptions sets the options used for every accepted connection
func WithConnOptions(options ConnOptions) ServerOption {
	return func(o *ServerOptions) {
		o.Conn = options
	}
}
