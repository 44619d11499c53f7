package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/davezuko/hardhat-pack/internal/lifetime"
)

const (
	hubProtocol  = "pack-hmr"
	writeTimeout = 5 * time.Second
)

// Payload is a message sent to connected browsers.
type Payload struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Hub is the websocket transport of the dev server. It tells browsers to
// reload and settles when the server shuts it down.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  *lifetime.Signal
	logger  *slog.Logger
}

func NewHub(l *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		closed:  lifetime.NewSignal(),
		logger:  l,
	}
}

func (h *Hub) Done() <-chan struct{} { return h.closed.Done() }
func (h *Hub) Err() error            { return h.closed.Err() }

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.closed.Done():
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{hubProtocol},
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if !h.add(conn) {
		conn.Close(websocket.StatusGoingAway, "server closed")
		return
	}
	defer h.remove(conn)

	ctx := r.Context()
	if err := h.send(ctx, conn, Payload{Type: "connected"}); err != nil {
		return
	}
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.closed.Done():
		return false
	default:
	}
	h.clients[conn] = struct{}{}
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.CloseNow()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends p to every connected browser. Slow or broken clients are
// dropped.
func (h *Hub) Broadcast(p Payload) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := h.send(ctx, conn, p); err != nil {
			h.logger.Debug("dropping websocket client", "error", err)
			conn.CloseNow()
		}
		cancel()
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, p Payload) error {
	dat, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, dat)
}

// Close disconnects every client and settles the hub.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.closed.Close()
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "server closed")
	}
	return nil
}
