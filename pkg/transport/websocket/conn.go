package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
	"github.com/gorilla/websocket"
)

// ConnOptions represents websocket connection options
type ConnOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
}

// DefaultConnOptions returns default connection options
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   512 * 1024, // 512KB
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendBufferSize:   256,
	}
}

// Handlers receive the inbound side of a Conn. Both run on the read pump
// goroutine, so OnMessage calls never overlap and OnClose is the last call.
type Handlers struct {
	OnMessage func(message []byte)

	// OnClose receives nil for an orderly close (local Close or a normal
	// close frame) and the cause otherwise.
	OnClose func(err error)
}

// Conn wraps a gorilla websocket with a read pump, a buffered write pump and
// ping keepalive. It is used by both the client and the server.
type Conn struct {
	id       string
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logging.Logger
	options  ConnOptions
	sendChan chan []byte
	handlers Handlers

	mu     sync.RWMutex
	closed bool
	cause  error

	wg sync.WaitGroup
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// Dial opens a websocket to endpoint. It returns as soon as ctx is done, even
// mid-handshake; a connection completing afterwards is closed.
func Dial(ctx context.Context, endpoint string, options ConnOptions) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: options.HandshakeTimeout,
		ReadBufferSize:   options.ReadBufferSize,
		WriteBufferSize:  options.WriteBufferSize,
	}

	done := make(chan dialResult, 1)
	go func() {
		conn, _, err := dialer.DialContext(ctx, endpoint, nil)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(r.err, errors.ErrorTypeTransport, "DIAL_ERROR", "failed to connect to server").
				WithDetails(endpoint)
		}
		return r.conn, nil

	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTransport, "DIAL_ERROR", "dial cancelled").
			WithDetails(endpoint)
	}
}

// NewConn wraps an established websocket connection
func NewConn(id string, conn *websocket.Conn, logger *logging.Logger, options ConnOptions) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	if options.SendBufferSize <= 0 {
		options.SendBufferSize = DefaultConnOptions().SendBufferSize
	}

	return &Conn{
		id:       id,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithFields(map[string]any{"conn_id": id}),
		options:  options,
		sendChan: make(chan []byte, options.SendBufferSize),
	}
}

// ID implements domain.Client
func (c *Conn) ID() string {
	return c.id
}

// Context implements domain.Client. It is cancelled once the connection is
// shutting down.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Send queues a message for the write pump. When the queue is full it waits
// for room until ctx is done.
func (c *Conn) Send(ctx context.Context, message []byte) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return domain.ErrConnectionClosed
	}

	select {
	case c.sendChan <- message:
		return nil
	default:
	}

	select {
	case c.sendChan <- message:
		return nil
	case <-c.ctx.Done():
		return domain.ErrConnectionClosed
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTransport, "SEND_BUFFER_FULL", "send buffer is full")
	}
}

// Start starts the read and write pumps
func (c *Conn) Start(handlers Handlers) {
	c.handlers = handlers
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// Close sends a close frame, closes the socket and waits for both pumps.
// It is idempotent and must not be called from a Handlers callback.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Debug("closing websocket connection")

	c.cancel()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline(c.options.WriteTimeout)); err != nil {
		c.logger.Debug("close frame not sent", "error", err)
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("error closing websocket connection", "error", err)
	}

	c.wg.Wait()

	return nil
}

// shutdown tears the socket down from inside a pump without waiting.
func (c *Conn) shutdown(cause error) {
	c.mu.Lock()
	if c.cause == nil && !c.closed {
		c.cause = cause
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.conn.Close()
}

// closeCause decides what OnClose reports for a read pump exit.
func (c *Conn) closeCause(readErr error) error {
	c.mu.RLock()
	cause, closed := c.cause, c.closed
	c.mu.RUnlock()

	switch {
	case cause != nil:
		return cause
	case closed:
		return nil
	case websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return nil
	default:
		return errors.Wrap(readErr, errors.ErrorTypeTransport, "READ_ERROR", "websocket read failed")
	}
}

// readPump pumps messages from the websocket connection
func (c *Conn) readPump() {
	defer c.wg.Done()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(deadline(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(deadline(c.options.ReadTimeout))
		return nil
	})

	var err error
	for {
		var messageType int
		var message []byte

		messageType, message, err = c.conn.ReadMessage()
		if err != nil {
			break
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		c.logger.Debug("received message", "size", len(message))

		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	}

	cause := c.closeCause(err)
	if cause != nil {
		c.logger.Warn("websocket connection lost", "error", cause)
	} else {
		c.logger.Debug("read pump stopped")
	}

	c.shutdown(cause)

	if c.handlers.OnClose != nil {
		c.handlers.OnClose(cause)
	}
}

// writePump pumps messages to the websocket connection
func (c *Conn) writePump() {
	defer c.wg.Done()
	defer c.logger.Debug("write pump stopped")

	var tick <-chan time.Time
	if c.options.PingInterval > 0 {
		ticker := time.NewTicker(c.options.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.sendChan:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.shutdown(errors.Wrap(err, errors.ErrorTypeTransport, "WRITE_ERROR", "websocket write failed"))
				return
			}

			// Drain any queued messages
			n := len(c.sendChan)
			for range n {
				if err := c.write(websocket.TextMessage, <-c.sendChan); err != nil {
					c.shutdown(errors.Wrap(err, errors.ErrorTypeTransport, "WRITE_ERROR", "websocket write failed"))
					return
				}
			}

		case <-tick:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown(errors.Wrap(err, errors.ErrorTypeTransport, "PING_ERROR", "websocket ping failed"))
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(deadline(c.options.WriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// deadline returns the zero time, meaning no deadline, for non-positive d.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
