package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// FetchFunc returns the payload published on each poll.
type FetchFunc func(ctx context.Context) (any, error)

// Hub manages WebSocket connections and broadcasts job snapshots to all
// clients. The latest snapshot is replayed to clients as they connect.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	mu         sync.RWMutex
	origins    []string
	snapshot   json.RawMessage
	done       chan struct{}
}

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	send chan []byte
	conn *websocket.Conn

	// closed is set once the hub has closed send; guarded by hub.mu.
	closed bool
}

// NewHub creates a new WebSocket hub. origins are the allowed browser
// origins; none, or "*", accepts any origin.
func NewHub(logger *slog.Logger, origins ...string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		origins:    origins,
		done:       make(chan struct{}),
	}
}

// acceptOptions maps the allowed origins to websocket host patterns.
func (h *Hub) acceptOptions() *websocket.AcceptOptions {
	if len(h.origins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	opts := &websocket.AcceptOptions{}
	for _, o := range h.origins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}
	return opts
}

// Run starts the hub's event loop. It returns when ctx is done, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop closes a client's send channel and forgets it. h.mu must be held.
func (h *Hub) drop(c *Client) {
	c.closed = true
	close(c.send)
	delete(h.clients, c)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Publish stores payload as the latest snapshot and broadcasts it.
func (h *Hub) Publish(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal jobs snapshot", "error", err)
		return
	}
	h.mu.Lock()
	h.snapshot = data
	h.mu.Unlock()

	msg, err := NewMessage(MsgJobs, json.RawMessage(data))
	if err != nil {
		h.logger.Error("failed to create jobs message", "error", err)
		return
	}
	h.Broadcast(msg)
}

// BroadcastError broadcasts an error to all clients.
func (h *Hub) BroadcastError(errMsg string) {
	msg, err := NewMessage(MsgError, map[string]string{"message": errMsg})
	if err != nil {
		return
	}
	h.Broadcast(msg)
}

// Snapshot returns the last published payload, nil before the first poll.
func (h *Hub) Snapshot() json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Poll calls fetch immediately and then every interval, publishing each
// result. Failures are broadcast as error messages and polling goes on.
func (h *Hub) Poll(ctx context.Context, interval time.Duration, fetch FetchFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		payload, err := fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			h.logger.Warn("polling jobs failed", "error", err)
			h.BroadcastError(err.Error())
		default:
			h.Publish(payload)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
