package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chatapp/internal/domain"
	"chatapp/internal/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Dispatcher consumes the lifecycle and inbound events of a connection.
// Calls for one connection are made sequentially from its read goroutine.
type Dispatcher interface {
	Connect(connID string)
	HandleMessage(connID string, raw []byte)
	Reject(connID string, err error)
	Disconnect(connID string)
}

// Conn is the subset of *websocket.Conn used by Client.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

type Client struct {
	id         string
	remoteAddr string
	hub        *Hub
	conn       Conn
	dispatcher Dispatcher
	limiter    *rate.Limiter
	log        *slog.Logger

	send       chan []byte
	sendMu     sync.Mutex
	sendClosed bool

	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient wraps conn under a fresh connection id. A nil limiter disables
// inbound rate limiting.
func NewClient(ctx context.Context, hub *Hub, conn Conn, remoteAddr string, dispatcher Dispatcher, limiter *rate.Limiter) *Client {
	id := uuid.NewString()
	return &Client{
		id:         id,
		remoteAddr: remoteAddr,
		hub:        hub,
		conn:       conn,
		dispatcher: dispatcher,
		limiter:    limiter,
		log:        observability.FromContext(observability.WithConnectionID(ctx, id)),
		send:       make(chan []byte, sendBufferSize),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads frames until the connection fails or closes, then runs the
// disconnect path exactly once.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConnection()
		c.dispatcher.Disconnect(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.dispatcher.Connect(c.id)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", slog.String("error", err.Error()))
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.dispatcher.Reject(c.id, domain.ErrRateLimited)
			continue
		}

		c.dispatcher.HandleMessage(c.id, message)
	}
}

// WritePump pumps frames from the send queue to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues frame without blocking. It reports false when the queue is
// full or already closed.
func (c *Client) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
