package protocol

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

// Handler applies an intent and returns the event that describes the result
type Handler interface {
	Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error) {
	return f(ctx, intent)
}

// HandlerRegistry manages intent handlers
type HandlerRegistry interface {
	// Register registers a handler for a message type
	Register(messageType domain.MessageType, handler Handler)

	// Get retrieves a handler for a message type
	Get(messageType domain.MessageType) (Handler, bool)

	// Handle routes an intent to the appropriate handler
	Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error)
}

// DefaultHandlerRegistry is the default implementation of HandlerRegistry
type DefaultHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.MessageType]Handler
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *DefaultHandlerRegistry {
	return &DefaultHandlerRegistry{
		handlers: make(map[domain.MessageType]Handler),
	}
}

// Register implements HandlerRegistry
func (r *DefaultHandlerRegistry) Register(messageType domain.MessageType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[messageType] = handler
}

// Get implements HandlerRegistry
func (r *DefaultHandlerRegistry) Get(messageType domain.MessageType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[messageType]
	return handler, ok
}

// Handle implements HandlerRegistry
func (r *DefaultHandlerRegistry) Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error) {
	handler, ok := r.Get(intent.Type)
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound, "NO_HANDLER", "no handler found for message type").
			WithDetails(string(intent.Type))
	}

	return handler.Handle(ctx, intent)
}
