package feed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub fans order events out to connected websocket clients. Dashboards
// subscribe to it to follow status changes live; delivery is best-effort and a
// slow or dead client is dropped rather than blocking the sender.

const writeTimeout = 5 * time.Second

type StatusEvent struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	At          string `json:"at"`
}

// client wraps a connection with a write lock. gorilla/websocket allows at
// most one concurrent writer per connection, and Broadcast is called from
// arbitrary request goroutines.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(ev StatusEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			// Browser clients come through the CORS-fronted API host.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until the
// peer goes away. Inbound messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.drain(c)
}

func (h *Hub) drain(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast pushes an event to every subscriber. Write failures unregister the
// connection.
func (h *Hub) Broadcast(ev StatusEvent) {
	if ev.At == "" {
		ev.At = time.Now().UTC().Format(time.RFC3339)
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(ev); err != nil {
			h.log.Debug("feed write failed, dropping client", zap.Error(err))
			h.remove(c)
		}
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
