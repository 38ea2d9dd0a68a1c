package server

import (
	"context"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/store"
	"github.com/HMasataka/livecount/pkg/transport/protocol"
)

// SetHandler stores the intent's value. It serves both create and set; a
// create on an existing counter overwrites it.
type SetHandler struct {
	store  store.Store
	logger *logging.Logger
}

// NewSetHandler creates a new set handler
func NewSetHandler(s store.Store, logger *logging.Logger) *SetHandler {
	return &SetHandler{store: s, logger: logger}
}

// Handle implements protocol.Handler
func (h *SetHandler) Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error) {
	if err := h.store.Set(ctx, intent.Name, intent.Value); err != nil {
		return nil, err
	}

	h.logger.Debug("counter stored", "type", string(intent.Type), "counter", string(intent.Name), "value", intent.Value)
	return domain.CounterUpdated{Name: intent.Name, Value: intent.Value}, nil
}

// AddHandler adjusts a counter by a fixed delta. Missing counters start at 0.
type AddHandler struct {
	store  store.Store
	delta  int64
	logger *logging.Logger
}

// NewAddHandler creates a new add handler
func NewAddHandler(s store.Store, delta int64, logger *logging.Logger) *AddHandler {
	return &AddHandler{store: s, delta: delta, logger: logger}
}

// Handle implements protocol.Handler
func (h *AddHandler) Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error) {
	value, err := h.store.Add(ctx, intent.Name, h.delta)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("counter adjusted", "counter", string(intent.Name), "value", value)
	return domain.CounterUpdated{Name: intent.Name, Value: value}, nil
}

// DeleteHandler removes a counter
type DeleteHandler struct {
	store  store.Store
	logger *logging.Logger
}

// NewDeleteHandler creates a new delete handler
func NewDeleteHandler(s store.Store, logger *logging.Logger) *DeleteHandler {
	return &DeleteHandler{store: s, logger: logger}
}

// Handle implements protocol.Handler. Deleting a missing counter produces no
// event.
func (h *DeleteHandler) Handle(ctx context.Context, intent domain.Intent) (domain.InboundEvent, error) {
	existed, err := h.store.Delete(ctx, intent.Name)
	if err != nil {
		return nil, err
	}
	if !existed {
		h.logger.Debug("delete of missing counter ignored", "counter", string(intent.Name))
		return nil, nil
	}

	h.logger.Debug("counter deleted", "counter", string(intent.Name))
	return domain.CounterDeleted{Name: intent.Name}, nil
}

// NewRegistry routes every intent type to its store handler
func NewRegistry(s store.Store, logger *logging.Logger) *protocol.DefaultHandlerRegistry {
	registry := protocol.NewHandlerRegistry()

	set := NewSetHandler(s, logger)
	registry.Register(domain.MessageTypeCreate, set)
	registry.Register(domain.MessageTypeSet, set)
	registry.Register(domain.MessageTypeIncrement, NewAddHandler(s, 1, logger))
	registry.Register(domain.MessageTypeDecrement, NewAddHandler(s, -1, logger))
	registry.Register(domain.MessageTypeDelete, NewDeleteHandler(s, logger))

	return registry
}
