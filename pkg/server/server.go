// Package server is a reference counter server speaking the livecount wire
// protocol over websockets.
package server

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/store"
	"github.com/HMasataka/livecount/pkg/transport/protocol"
	"github.com/HMasataka/livecount/pkg/transport/websocket"
)

// Options represents server configuration
type Options struct {
	Logger   *logging.Logger
	EventBus eventbus.Bus
	Conn     websocket.ConnOptions
}

// Option configures a Server
type Option func(*Options)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithEventBus sets the bus client and counter events are published on
func WithEventBus(bus eventbus.Bus) Option {
	return func(o *Options) {
		o.EventBus = bus
	}
}

// WithConnOptions sets the options of accepted websockets
func WithConnOptions(options websocket.ConnOptions) Option {
	return func(o *Options) {
		o.Conn = options
	}
}

// Server applies intents to a store and broadcasts the results. It implements
// websocket.MessageRouter.
type Server struct {
	store    store.Store
	hub      domain.Hub
	registry *protocol.DefaultHandlerRegistry
	codec    *protocol.JSONCodec
	logger   *logging.Logger
	eventBus eventbus.Bus
	options  Options

	// mu orders mutations with their broadcasts and keeps snapshots sent to
	// new clients consistent with the broadcast stream.
	mu sync.Mutex
}

// New creates a server backed by s broadcasting through hub
func New(s store.Store, hub domain.Hub, opts ...Option) *Server {
	options := Options{
		Logger: logging.Nop(),
		Conn:   websocket.DefaultConnOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger.WithComponent("counter-server")

	return &Server{
		store:    s,
		hub:      hub,
		registry: NewRegistry(s, logger),
		codec:    protocol.NewJSONCodec(),
		logger:   logger,
		eventBus: options.EventBus,
		options:  options,
	}
}

// OnConnect implements websocket.MessageRouter. It registers client and sends
// one counter event per stored counter.
func (s *Server) OnConnect(ctx context.Context, client domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.store.All(ctx)
	if err != nil {
		return err
	}

	if err := s.hub.Register(client); err != nil {
		return err
	}

	sendCtx := ctx
	if s.options.Conn.WriteTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.options.Conn.WriteTimeout)
		defer cancel()
	}

	for _, name := range snapshot.Names() {
		event := domain.CounterUpdated{Name: name, Value: snapshot[name]}
		if err := client.Send(sendCtx, s.codec.EncodeEvent(event)); err != nil {
			s.hub.Unregister(client.ID())
			return err
		}
	}

	s.logger.Debug("snapshot sent", "client_id", client.ID(), "counters", len(snapshot))
	return nil
}

// Handle implements websocket.MessageRouter
func (s *Server) Handle(ctx context.Context, client domain.Client, message []byte) error {
	intent, err := s.codec.DecodeIntent(message)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.registry.Handle(ctx, intent)
	if err != nil {
		return err
	}
	if event == nil {
		return nil
	}

	if err := s.hub.Broadcast(s.codec.EncodeEvent(event)); err != nil {
		return err
	}

	s.publish(event)
	return nil
}

// Stats returns hub statistics
func (s *Server) Stats() domain.HubStats {
	return s.hub.Stats()
}

func (s *Server) publish(event domain.InboundEvent) {
	if s.eventBus == nil {
		return
	}

	eventType := eventbus.EventCounterUpdated
	if _, ok := event.(domain.CounterDeleted); ok {
		eventType = eventbus.EventCounterDeleted
	}
	s.eventBus.PublishAsync(eventbus.NewEvent(eventType, "counter-server", event))
}
