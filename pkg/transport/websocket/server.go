package websocket

import (
	"context"
	"net/http"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// MessageRouter receives the lifecycle and inbound messages of server-side
// connections.
type MessageRouter interface {
	// OnConnect runs once the connection is up. Returning an error rejects
	// the client.
	OnConnect(ctx context.Context, client domain.Client) error

	// Handle processes one inbound message. Calls for the same client never
	// overlap.
	Handle(ctx context.Context, client domain.Client, message []byte) error
}

// Server represents a WebSocket server
type Server struct {
	upgrader websocket.Upgrader
	hub      domain.Hub
	logger   *logging.Logger
	eventBus eventbus.Bus
	options  ServerOptions
}

// NewServer creates a new WebSocket server
func NewServer(opts ...ServerOption) *Server {
	options := ServerOptions{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		Conn: DefaultConnOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logging.Nop()
	}

	return &Server{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: options.Conn.HandshakeTimeout,
			ReadBufferSize:   options.Conn.ReadBufferSize,
			WriteBufferSize:  options.Conn.WriteBufferSize,
			CheckOrigin:      options.CheckOrigin,
		},
		hub:      options.Hub,
		logger:   options.Logger.WithComponent("websocket-server"),
		eventBus: options.EventBus,
		options:  options,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	clientID := xid.New().String()
	client := NewConn(clientID, ws, s.logger, s.options.Conn)
	client.Start(Handlers{
		OnMessage: func(message []byte) {
			s.handleMessage(client, message)
		},
	})

	if s.options.Router != nil {
		if err := s.options.Router.OnConnect(client.Context(), client); err != nil {
			s.logger.Error("client rejected",
				"error", err,
				"client_id", clientID,
			)
			client.Close()
			return
		}
	}

	s.publish(eventbus.EventClientConnected, map[string]string{
		"client_id":   clientID,
		"remote_addr": r.RemoteAddr,
	})

	s.logger.Info("client connected",
		"client_id", clientID,
		"remote_addr", r.RemoteAddr,
	)

	// Wait for client to disconnect
	<-client.Context().Done()

	if s.hub != nil {
		if err := s.hub.Unregister(clientID); err != nil {
			s.logger.Debug("failed to unregister client",
				"error", err,
				"client_id", clientID,
			)
		}
	}
	client.Close()

	s.publish(eventbus.EventClientDisconnected, map[string]string{
		"client_id": clientID,
	})

	s.logger.Info("client disconnected", "client_id", clientID)
}

// handleMessage routes one inbound message. Errors are logged and the
// connection stays open.
func (s *Server) handleMessage(client *Conn, message []byte) {
	if s.options.Router == nil {
		s.logger.Warn("no router configured")
		return
	}

	if err := s.options.Router.Handle(client.Context(), client, message); err != nil {
		s.logger.Warn("message rejected",
			"client_id", client.ID(),
			"error", err,
			"raw_message", string(message),
		)
	}
}

func (s *Server) publish(eventType eventbus.EventType, data map[string]string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishAsync(eventbus.NewEvent(eventType, "websocket-server", data))
}
