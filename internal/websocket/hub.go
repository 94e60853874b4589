package websocket

import (
	"context"
	"sync"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/rs/zerolog"
)

// Hub maintains the set of connected dashboards and broadcasts snapshots to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound snapshots
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex to protect clients map
	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(m *metrics.Metrics, logger zerolog.Logger) *Hub {
	if m == nil {
		m = metrics.New()
	}
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		metrics:    m,
		logger:     logger.With().Str("component", "dashboard_hub").Logger(),
	}
}

// Run starts the hub's main loop. All clients are closed when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.remove(client, "client disconnected")

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Broadcast queues a message for all connected clients. It never blocks: when
// the queue is full the message is dropped and the next snapshot replaces it.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.metrics.RecordWebSocketError()
		h.logger.Warn().Msg("broadcast queue full, dropping snapshot")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.RecordWebSocketDisconnect()
	h.logger.Info().
		Str("client_id", client.id).
		Int("total_clients", len(h.clients)).
		Msg(msg)
}

// broadcastRaw sends a message to all clients, dropping the ones that cannot keep up
func (h *Hub) broadcastRaw(message []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.metrics.RecordWebSocketError()
		h.remove(client, "client send buffer full, closing connection")
	}
}
