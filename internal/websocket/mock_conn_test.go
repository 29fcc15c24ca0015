package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type written struct {
	messageType int
	data        []byte
}

// mockConn is an in-memory Conn. Frames queued with push are returned by
// ReadMessage; Close or finish make ReadMessage fail.
type mockConn struct {
	reads    chan []byte
	closedCh chan struct{}

	mu         sync.Mutex
	writes     []written
	closeCalls int
	closeOnce  sync.Once
	writeErr   error
}

func newMockConn() *mockConn {
	return &mockConn{
		reads:    make(chan []byte, 64),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) push(frame string) {
	m.reads <- []byte(frame)
}

// finish simulates the peer closing the connection
func (m *mockConn) finish() {
	close(m.reads)
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-m.reads:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseGoingAway}
		}
		return websocket.TextMessage, msg, nil
	case <-m.closedCh:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, written{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.closedCh) })
	return nil
}

func (m *mockConn) Writes() []written {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]written(nil), m.writes...)
}

func (m *mockConn) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

type dispatchCall struct {
	method string
	connID string
	data   string
	err    error
}

// recordingDispatcher records every call made by a client
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *recordingDispatcher) add(c dispatchCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *recordingDispatcher) Connect(connID string) {
	d.add(dispatchCall{method: "connect", connID: connID})
}

func (d *recordingDispatcher) HandleMessage(connID string, raw []byte) {
	d.add(dispatchCall{method: "message", connID: connID, data: string(raw)})
}

func (d *recordingDispatcher) Reject(connID string, err error) {
	d.add(dispatchCall{method: "reject", connID: connID, err: err})
}

func (d *recordingDispatcher) Disconnect(connID string) {
	d.add(dispatchCall{method: "disconnect", connID: connID})
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

func (d *recordingDispatcher) Methods() []string {
	calls := d.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.method
	}
	return out
}
