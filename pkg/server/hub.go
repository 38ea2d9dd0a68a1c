package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HMasataka/livecount/internal/logging"
	"github.com/HMasataka/livecount/pkg/domain"
	"github.com/HMasataka/livecount/pkg/errors"
)

// Hub implements domain.Hub. Registration is synchronous; broadcasts are
// delivered by a single goroutine in the order they were queued.
type Hub struct {
	clients   sync.Map // map[string]domain.Client
	broadcast chan []byte
	sendTo    chan sendMessage
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	sendTimeout time.Duration

	// Statistics
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	startTime        time.Time
}

type sendMessage struct {
	clientID string
	message  []byte
}

// NewHub creates a new hub
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		broadcast:   make(chan []byte, 1000),
		sendTo:      make(chan sendMessage, 1000),
		logger:      logger.WithComponent("hub"),
		ctx:         ctx,
		cancel:      cancel,
		sendTimeout: 5 * time.Second,
		startTime:   time.Now(),
	}
}

// Start implements domain.Hub. The hub stops when ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	context.AfterFunc(ctx, h.cancel)

	h.wg.Add(1)
	go h.run()
	h.logger.Info("hub started")
	return nil
}

// Stop implements domain.Hub
func (h *Hub) Stop() error {
	h.logger.Info("stopping hub")
	h.cancel()
	h.wg.Wait()

	h.clients.Range(func(key, value any) bool {
		value.(domain.Client).Close()
		h.clients.Delete(key)
		return true
	})

	h.logger.Info("hub stopped")
	return nil
}

// Register implements domain.Hub
func (h *Hub) Register(client domain.Client) error {
	if h.ctx.Err() != nil {
		return domain.ErrHubStopped
	}

	if _, loaded := h.clients.LoadOrStore(client.ID(), client); loaded {
		return errors.Wrap(domain.ErrClientAlreadyExists, errors.ErrorTypeValidation, "CLIENT_EXISTS", "client already registered").
			WithDetails(client.ID())
	}

	h.logger.Info("client registered",
		"client_id", client.ID(),
		"total_clients", h.clientCount(),
	)
	return nil
}

// Unregister implements domain.Hub. The client is not closed.
func (h *Hub) Unregister(clientID string) error {
	if _, ok := h.clients.LoadAndDelete(clientID); !ok {
		return errors.Wrap(domain.ErrClientNotFound, errors.ErrorTypeNotFound, "CLIENT_NOT_FOUND", "client not registered").
			WithDetails(clientID)
	}

	h.logger.Info("client unregistered",
		"client_id", clientID,
		"total_clients", h.clientCount(),
	)
	return nil
}

// Broadcast implements domain.Hub
func (h *Hub) Broadcast(message []byte) error {
	select {
	case <-h.ctx.Done():
		return domain.ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- message:
		h.messagesReceived.Add(1)
		return nil
	case <-h.ctx.Done():
		return domain.ErrHubStopped
	default:
		return errors.New(errors.ErrorTypeInternal, "BROADCAST_QUEUE_FULL", "broadcast queue is full")
	}
}

// SendTo implements domain.Hub
func (h *Hub) SendTo(clientID string, message []byte) error {
	select {
	case <-h.ctx.Done():
		return domain.ErrHubStopped
	default:
	}

	select {
	case h.sendTo <- sendMessage{clientID: clientID, message: message}:
		h.messagesReceived.Add(1)
		return nil
	case <-h.ctx.Done():
		return domain.ErrHubStopped
	default:
		return errors.New(errors.ErrorTypeInternal, "SENDTO_QUEUE_FULL", "send queue is full")
	}
}

// GetClient implements domain.Hub
func (h *Hub) GetClient(clientID string) (domain.Client, bool) {
	if value, ok := h.clients.Load(clientID); ok {
		return value.(domain.Client), true
	}
	return nil, false
}

// Stats implements domain.Hub
func (h *Hub) Stats() domain.HubStats {
	return domain.HubStats{
		ConnectedClients: h.clientCount(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		Uptime:           time.Since(h.startTime).Seconds(),
	}
}

// run is the main hub loop
func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message := <-h.broadcast:
			h.handleBroadcast(message)

		case msg := <-h.sendTo:
			h.handleSendTo(msg.clientID, msg.message)
		}
	}
}

func (h *Hub) handleBroadcast(message []byte) {
	var successCount, errorCount int

	h.clients.Range(func(key, value any) bool {
		if h.deliver(value.(domain.Client), message) {
			successCount++
		} else {
			errorCount++
		}
		return true
	})

	h.logger.Debug("broadcast complete",
		"success_count", successCount,
		"error_count", errorCount,
	)
}

func (h *Hub) handleSendTo(clientID string, message []byte) {
	client, ok := h.GetClient(clientID)
	if !ok {
		h.logger.Warn("client not found", "client_id", clientID)
		return
	}
	h.deliver(client, message)
}

func (h *Hub) deliver(client domain.Client, message []byte) bool {
	ctx, cancel := context.WithTimeout(h.ctx, h.sendTimeout)
	err := client.Send(ctx, message)
	cancel()

	if err != nil {
		h.logger.Warn("failed to send to client",
			"client_id", client.ID(),
			"error", err,
		)
		return false
	}

	h.messagesSent.Add(1)
	return true
}

func (h *Hub) clientCount() int {
	count := 0
	h.clients.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
