package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatapp/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(hub *Hub, conn Conn, d Dispatcher, limiter *rate.Limiter) *Client {
	return NewClient(context.Background(), hub, conn, "127.0.0.1:5555", d, limiter)
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, newMockConn(), &recordingDispatcher{}, nil)
	b := newTestClient(hub, newMockConn(), &recordingDispatcher{}, nil)

	_, err := uuid.Parse(a.ID())
	assert.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, sendBufferSize, cap(a.send))
}

func TestClient_ReadPump_Lifecycle(t *testing.T) {
	hub := NewHub()
	conn := newMockConn()
	d := &recordingDispatcher{}
	client := newTestClient(hub, conn, d, nil)
	hub.Register(client)

	conn.push(`{"event":"ping"}`)
	conn.push(`{"event":"typing"}`)
	conn.finish()

	client.ReadPump()

	calls := d.Calls()
	require.Equal(t, []string{"connect", "message", "message", "disconnect"}, d.Methods())
	assert.Equal(t, `{"event":"ping"}`, calls[1].data)
	assert.Equal(t, `{"event":"typing"}`, calls[2].data)
	for _, c := range calls {
		assert.Equal(t, client.ID(), c.connID)
	}

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 1, conn.CloseCalls())
}

func TestClient_ReadPump_RateLimited(t *testing.T) {
	hub := NewHub()
	conn := newMockConn()
	d := &recordingDispatcher{}
	client := newTestClient(hub, conn, d, rate.NewLimiter(rate.Every(time.Hour), 2))
	hub.Register(client)

	for i := 0; i < 4; i++ {
		conn.push(`{"event":"ping"}`)
	}
	conn.finish()

	client.ReadPump()

	calls := d.Calls()
	require.Equal(t, []string{"connect", "message", "message", "reject", "reject", "disconnect"}, d.Methods())
	assert.ErrorIs(t, calls[3].err, domain.ErrRateLimited)
}

func TestClient_WritePump_DeliversFrames(t *testing.T) {
	hub := NewHub()
	conn := newMockConn()
	client := newTestClient(hub, conn, &recordingDispatcher{}, nil)
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	require.NoError(t, hub.Send(client.ID(), []byte(`{"event":"pong"}`)))
	require.NoError(t, hub.Send(client.ID(), []byte(`{"event":"user_count"}`)))

	require.Eventually(t, func() bool {
		return len(conn.Writes()) == 2
	}, time.Second, 5*time.Millisecond)

	hub.Unregister(client)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}

	writes := conn.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, websocket.TextMessage, writes[0].messageType)
	assert.Equal(t, `{"event":"pong"}`, string(writes[0].data))
	assert.Equal(t, `{"event":"user_count"}`, string(writes[1].data))
	assert.Equal(t, websocket.CloseMessage, writes[2].messageType)
	assert.Equal(t, 1, conn.CloseCalls())
}

func TestClient_WritePump_StopsOnWriteError(t *testing.T) {
	hub := NewHub()
	conn := newMockConn()
	conn.writeErr = websocket.ErrCloseSent
	client := newTestClient(hub, conn, &recordingDispatcher{}, nil)
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	require.NoError(t, hub.Send(client.ID(), []byte(`{"event":"pong"}`)))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}
	assert.Equal(t, 1, conn.CloseCalls())
}

// A failed write closes the socket, which ends the read loop and runs the
// disconnect path.
func TestClient_WriteFailureEndsReadPump(t *testing.T) {
	hub := NewHub()
	conn := newMockConn()
	conn.writeErr = websocket.ErrCloseSent
	d := &recordingDispatcher{}
	client := newTestClient(hub, conn, d, nil)
	hub.Register(client)

	readDone := make(chan struct{})
	go func() {
		client.ReadPump()
		close(readDone)
	}()
	go client.WritePump()

	require.Eventually(t, func() bool {
		return len(d.Calls()) > 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Send(client.ID(), []byte(`{"event":"pong"}`)))

	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}
	assert.Equal(t, []string{"connect", "disconnect"}, d.Methods())
	assert.Equal(t, 0, hub.Count())
}

func TestClient_CloseConnection_Idempotent(t *testing.T) {
	conn := newMockConn()
	client := newTestClient(NewHub(), conn, &recordingDispatcher{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.closeConnection()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, conn.CloseCalls())
	assert.ErrorIs(t, client.writeMessage(websocket.TextMessage, []byte("x")), websocket.ErrCloseSent)
}

func TestClient_EnqueueAfterClose(t *testing.T) {
	client := newTestClient(NewHub(), newMockConn(), &recordingDispatcher{}, nil)

	assert.True(t, client.enqueue([]byte("a")))
	client.closeSend()
	client.closeSend()
	assert.False(t, client.enqueue([]byte("b")))
}

func TestClient_WriteMessage_ThreadSafe(t *testing.T) {
	conn := newMockConn()
	client := newTestClient(NewHub(), conn, &recordingDispatcher{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = client.writeMessage(websocket.TextMessage, []byte("concurrent"))
		}()
	}
	wg.Wait()

	assert.Len(t, conn.Writes(), 20)
}
