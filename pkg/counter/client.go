package counter

import (
	"context"

	"github.com/HMasataka/livecount/internal/eventbus"
	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/connection"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/HMasataka/livecount/pkg/transport/protocol"
	"github.com/HMasataka/livecount/pkg/transport/websocket"
)

// ClientOptions represents client configuration
type ClientOptions struct {
	Logger       *logging.Logger
	EventBus     eventbus.Bus
	Conn         websocket.ConnOptions
	Codec        protocol.Codec
	ErrorHandler errors.Handler
}

// ClientOption configures a Client
type ClientOption func(*ClientOptions)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = logger
	}
}

// WithEventBus sets the bus snapshot and connection events are published on
func WithEventBus(bus eventbus.Bus) ClientOption {
	return func(o *ClientOptions) {
		o.EventBus = bus
	}
}

// WithConnOptions sets the websocket options
func WithConnOptions(options websocket.ConnOptions) ClientOption {
	return func(o *ClientOptions) {
		o.Conn = options
	}
}

// WithCodec replaces the wire codec
func WithCodec(codec protocol.Codec) ClientOption {
	return func(o *ClientOptions) {
		o.Codec = codec
	}
}

// WithErrorHandler sets where decode failures are reported
func WithErrorHandler(handler errors.Handler) ClientOption {
	return func(o *ClientOptions) {
		o.ErrorHandler = handler
	}
}

// Client is a live view of the server's counters plus the actions a user can
// take on them.
type Client struct {
	engine     *Engine
	dispatcher *Dispatcher
	edits      *EditTracker
	conn       *connection.Manager
	codec      protocol.Codec
	logger     *logging.Logger
	errors     errors.Handler
	eventBus   eventbus.Bus
}

// NewClient creates a disconnected client
func NewClient(opts ...ClientOption) *Client {
	options := ClientOptions{
		Logger: logging.Nop(),
		Conn:   websocket.DefaultConnOptions(),
		Codec:  protocol.NewJSONCodec(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger.WithComponent("counter-client")
	if options.ErrorHandler == nil {
		options.ErrorHandler = errors.NewDefaultHandler(logger.Logger)
	}

	c := &Client{
		engine:   NewEngine(options.EventBus),
		codec:    options.Codec,
		logger:   logger,
		errors:   options.ErrorHandler,
		eventBus: options.EventBus,
	}

	c.conn = connection.New((*listener)(c),
		connection.WithLogger(options.Logger),
		connection.WithEventBus(options.EventBus),
		connection.WithConnOptions(options.Conn),
	)
	c.dispatcher = NewDispatcher(c.conn, c.engine, logger,
		WithDispatcherCodec(options.Codec),
		WithDispatcherErrorHandler(options.ErrorHandler),
	)
	c.edits = NewEditTracker(c)

	return c
}

// Connect opens the connection to endpoint
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	return c.conn.Connect(ctx, endpoint)
}

// Close closes the connection. The snapshot is cleared.
func (c *Client) Close() error {
	return c.conn.Close()
}

// IsConnected reports whether intents can be sent
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the connection state
func (c *Client) State() domain.ConnectionState {
	return c.conn.State()
}

// Snapshot returns a copy of the known counters
func (c *Client) Snapshot() domain.Snapshot {
	return c.engine.Snapshot()
}

// Value returns the known value of name
func (c *Client) Value(name domain.CounterName) (int64, bool) {
	return c.engine.Value(name)
}

// Create asks the server to create a counter
func (c *Client) Create(ctx context.Context, name domain.CounterName, initialValue int64) error {
	return c.dispatcher.Create(ctx, name, initialValue)
}

// Increment asks the server to add one to name
func (c *Client) Increment(ctx context.Context, name domain.CounterName) error {
	return c.dispatcher.Increment(ctx, name)
}

// Decrement asks the server to subtract one from name
func (c *Client) Decrement(ctx context.Context, name domain.CounterName) error {
	return c.dispatcher.Decrement(ctx, name)
}

// SetValue asks the server to overwrite name. A successful set ends an edit
// session on the same counter.
func (c *Client) SetValue(ctx context.Context, name domain.CounterName, value int64) error {
	if err := c.dispatcher.SetValue(ctx, name, value); err != nil {
		return err
	}
	c.edits.End(name)
	return nil
}

// Delete asks the server to remove name after confirmation
func (c *Client) Delete(ctx context.Context, name domain.CounterName, confirmer Confirmer) error {
	return c.dispatcher.Delete(ctx, name, confirmer)
}

// SetDraft updates the new-counter form
func (c *Client) SetDraft(name domain.CounterName, value int64) {
	c.dispatcher.SetDraft(name, value)
}

// Draft returns the new-counter form
func (c *Client) Draft() Draft {
	return c.dispatcher.Draft()
}

// CreateDraft submits the new-counter form
func (c *Client) CreateDraft(ctx context.Context) error {
	return c.dispatcher.CreateDraft(ctx)
}

// BeginEdit starts editing name from its current value
func (c *Client) BeginEdit(name domain.CounterName) error {
	value, ok := c.engine.Value(name)
	if !ok {
		return errors.Wrap(domain.ErrUnknownCounter, errors.ErrorTypeValidation, "UNKNOWN_COUNTER", "cannot edit a missing counter").
			WithDetails(string(name))
	}
	c.edits.Begin(name, value)
	return nil
}

// UpdateEdit changes the pending value of the edit session
func (c *Client) UpdateEdit(value int64) {
	c.edits.Update(value)
}

// CommitEdit sends the pending value
func (c *Client) CommitEdit(ctx context.Context) error {
	return c.edits.Commit(ctx)
}

// CancelEdit discards the edit session
func (c *Client) CancelEdit() {
	c.edits.Cancel()
}

// EditSession returns the active edit session
func (c *Client) EditSession() (EditSession, bool) {
	return c.edits.Active()
}

// listener adapts Client to connection.Listener without exporting the
// callbacks.
type listener Client

func (l *listener) OnOpen() {
	l.engine.Reset()
}

func (l *listener) OnMessage(message []byte) {
	event, err := l.codec.DecodeEvent(message)
	if err != nil {
		l.errors.HandleWithLogger(context.Background(), err, l.logger.Logger)
		if l.eventBus != nil {
			l.eventBus.Publish(eventbus.NewEvent(eventbus.EventError, "counter-client", err))
		}
		return
	}

	if unknown, ok := event.(domain.Unknown); ok {
		l.logger.Debug("ignoring unknown event", "type", unknown.Kind)
		return
	}

	l.engine.Apply(event)
}

func (l *listener) OnClose(state domain.ConnectionState, err error) {
	l.engine.Reset()
	l.logger.Info("connection closed, snapshot cleared", "state", state.String())
}
