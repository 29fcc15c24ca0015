package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"chatapp/internal/observability"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSendBufferFull     = errors.New("send buffer full")
)

// Hub maintains the table of open connections and delivers frames to them.
// It knows nothing about rooms; recipients are chosen by the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closing bool

	// ReadPumps started by Serve; shutdown waits for their disconnect paths
	readers sync.WaitGroup

	// Shutdown signal
	done chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		done:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	slog.Info("hub shutting down gracefully")
	h.shutdown()
	return ctx.Err()
}

// Done is closed once the hub has shut down and every connection started
// with Serve has finished its disconnect path.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.add(client, false)
}

// Serve registers client and runs its pumps. Shutdown waits for the
// client's ReadPump to return. Clients served after shutdown began are
// closed straight away.
func (h *Hub) Serve(client *Client) {
	if !h.add(client, true) {
		slog.Debug("hub closing, rejecting client", slog.String("connection_id", client.id))
		client.closeConnection()
		return
	}

	go client.WritePump()
	go func() {
		defer h.readers.Done()
		client.ReadPump()
	}()
}

func (h *Hub) add(client *Client, track bool) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	if track {
		h.readers.Add(1)
	}
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	observability.WebSocketConnectionsActive.Inc()
	slog.Debug("client registered",
		slog.String("connection_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("connections", count))
	return true
}

// Unregister removes a client and closes its send queue. Calling it more
// than once is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	h.mu.Unlock()

	if !ok || current != client {
		return
	}
	client.closeSend()
	observability.WebSocketConnectionsActive.Dec()
	slog.Debug("client unregistered", slog.String("connection_id", client.id))
}

// Send queues frame for connID without blocking. A client whose queue is
// full is unregistered, which closes its connection.
func (h *Hub) Send(connID string, frame []byte) error {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return ErrConnectionNotFound
	}
	if !client.enqueue(frame) {
		slog.Warn("client send buffer full, dropping connection",
			slog.String("connection_id", connID))
		h.Unregister(client)
		return ErrSendBufferFull
	}
	return nil
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// shutdown closes every connection and waits for served clients to run
// their disconnect paths.
func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.Unregister(client)
	}
	h.readers.Wait()
	close(h.done)

	slog.Info("hub shutdown complete", slog.Int("closed_connections", len(clients)))
}
