// Package connection owns the single websocket a client talks to the counter
// server through.
package connection

import (
	"context"
	"sync"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/HMasataka/livecount/pkg/transport/websocket"
	"github.com/rs/xid"
)

// Listener receives connection lifecycle callbacks. Callbacks are never
// concurrent, OnOpen precedes the first OnMessage, and nothing is delivered
// after OnClose for the same connection. Listeners must not call back into
// the Manager.
type Listener interface {
	OnOpen()
	OnMessage(message []byte)
	OnClose(state domain.ConnectionState, err error)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEventBus publishes every state transition on bus
func WithEventBus(bus eventbus.Bus) Option {
	return func(m *Manager) {
		m.eventBus = bus
	}
}

// WithConnOptions sets the websocket options used when dialing
func WithConnOptions(options websocket.ConnOptions) Option {
	return func(m *Manager) {
		m.options = options
	}
}

// Manager holds at most one live connection.
type Manager struct {
	listener Listener
	logger   *logging.Logger
	eventBus eventbus.Bus
	options  websocket.ConnOptions

	// cbMu serializes listener callbacks. Lock order is cbMu then mu.
	cbMu sync.Mutex

	mu         sync.Mutex
	state      domain.ConnectionState
	conn       *websocket.Conn
	gen        uint64
	cancelDial context.CancelFunc
}

// New creates a disconnected Manager reporting to listener
func New(listener Listener, opts ...Option) *Manager {
	m := &Manager{
		listener: listener,
		logger:   logging.Nop(),
		options:  websocket.DefaultConnOptions(),
		state:    domain.StateDisconnected,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.WithComponent("connection")
	return m
}

// Connect dials endpoint and starts delivering callbacks.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	if m.state == domain.StateConnecting || m.state == domain.StateConnected {
		m.mu.Unlock()
		return errors.Wrap(domain.ErrAlreadyConnected, errors.ErrorTypeValidation, "ALREADY_CONNECTED", "connection is already live")
	}
	m.gen++
	gen := m.gen
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.cancelDial = cancel
	change := m.setState(domain.StateConnecting, nil)
	m.mu.Unlock()
	m.publish(change)

	m.logger.Info("connecting", "endpoint", endpoint)

	ws, err := websocket.Dial(dialCtx, endpoint, m.options)
	if err != nil {
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return errors.Wrap(err, errors.ErrorTypeTransport, "CONNECT_ABORTED", "connection closed while dialing")
		}
		m.cancelDial = nil
		change := m.setState(domain.StateErrored, err)
		m.mu.Unlock()
		m.publish(change)

		m.logger.Warn("connect failed", "endpoint", endpoint, "error", err)
		return err
	}

	conn := websocket.NewConn(xid.New().String(), ws, m.logger, m.options)

	m.cbMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.cbMu.Unlock()
		ws.Close()
		return errors.Wrap(domain.ErrConnectionClosed, errors.ErrorTypeTransport, "CONNECT_ABORTED", "connection closed while dialing")
	}
	m.conn = conn
	m.cancelDial = nil
	change = m.setState(domain.StateConnected, nil)
	m.mu.Unlock()

	m.listener.OnOpen()
	conn.Start(websocket.Handlers{
		OnMessage: func(message []byte) {
			m.handleMessage(gen, message)
		},
		OnClose: func(err error) {
			m.handleClosed(gen, err)
		},
	})
	m.cbMu.Unlock()

	m.publish(change)
	m.logger.Info("connected", "endpoint", endpoint, "conn_id", conn.ID())

	return nil
}

// IsConnected reports whether sends are currently accepted
func (m *Manager) IsConnected() bool {
	return m.State() == domain.StateConnected
}

// State returns the current connection state
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send queues message on the live connection. It waits only for room in the
// send queue, bounded by ctx.
func (m *Manager) Send(ctx context.Context, message []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == domain.StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return errors.Wrap(domain.ErrNotConnected, errors.ErrorTypeValidation, "NOT_CONNECTED", "no open connection")
	}

	if err := conn.Send(ctx, message); err != nil {
		if err == domain.ErrConnectionClosed {
			return errors.Wrap(domain.ErrNotConnected, errors.ErrorTypeValidation, "NOT_CONNECTED", "connection is closing")
		}
		return err
	}
	return nil
}

// Close closes the live connection, if any. It is idempotent and cancels a
// dial in progress.
func (m *Manager) Close() error {
	m.cbMu.Lock()
	m.mu.Lock()
	old := m.state
	conn := m.conn
	if conn == nil && old != domain.StateConnecting {
		m.mu.Unlock()
		m.cbMu.Unlock()
		return nil
	}
	m.gen++
	m.conn = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	change := m.setState(domain.StateDisconnected, nil)
	m.mu.Unlock()

	if old == domain.StateConnected {
		m.listener.OnClose(domain.StateDisconnected, nil)
	}
	m.cbMu.Unlock()

	m.publish(change)

	if conn != nil {
		m.logger.Info("closing connection", "conn_id", conn.ID())
		return conn.Close()
	}
	return nil
}

func (m *Manager) handleMessage(gen uint64, message []byte) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()

	m.mu.Lock()
	current := m.gen == gen
	m.mu.Unlock()

	if !current {
		return
	}
	m.listener.OnMessage(message)
}

func (m *Manager) handleClosed(gen uint64, err error) {
	m.cbMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.cbMu.Unlock()
		return
	}

	next := domain.StateDisconnected
	if err != nil {
		next = domain.StateErrored
	}
	m.conn = nil
	change := m.setState(next, err)
	m.mu.Unlock()

	m.listener.OnClose(next, err)
	m.cbMu.Unlock()

	m.publish(change)
	m.logger.Info("connection closed", "state", next.String(), "error", err)
}

// setState must be called with mu held.
func (m *Manager) setState(next domain.ConnectionState, err error) domain.StateChange {
	change := domain.StateChange{Old: m.state, New: next, Err: err}
	m.state = next
	return change
}

func (m *Manager) publish(change domain.StateChange) {
	if m.eventBus == nil || change.Old == change.New {
		return
	}

	event := eventbus.NewEvent(eventbus.EventStateChanged, "connection", change).
		WithMetadata("old", change.Old.String()).
		WithMetadata("new", change.New.String())
	m.eventBus.Publish(event)
}
