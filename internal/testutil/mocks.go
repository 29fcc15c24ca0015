// Package testutil provides shared test utilities, fakes, and fixtures
// for testing the chat application.
package testutil

import (
	"encoding/json"
	"errors"
	"sync"

	"chatapp/internal/domain"
)

// ErrMockSendFailed is returned by FakeTransport for connections marked as failing
var ErrMockSendFailed = errors.New("mock: send failed")

// FakeTransport records frames per connection instead of writing to sockets
type FakeTransport struct {
	mu      sync.Mutex
	frames  map[string][][]byte
	failing map[string]bool
}

// NewFakeTransport creates an empty FakeTransport
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		frames:  make(map[string][][]byte),
		failing: make(map[string]bool),
	}
}

func (f *FakeTransport) Send(connID string, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[connID] {
		return ErrMockSendFailed
	}
	f.frames[connID] = append(f.frames[connID], frame)
	return nil
}

// Fail makes every later Send to connID return ErrMockSendFailed
func (f *FakeTransport) Fail(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[connID] = true
}

// Envelopes returns the frames sent to connID, decoded
func (f *FakeTransport) Envelopes(connID string) []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Envelope, 0, len(f.frames[connID]))
	for _, frame := range f.frames[connID] {
		var env domain.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			panic("testutil: transport received invalid frame: " + string(frame))
		}
		out = append(out, env)
	}
	return out
}

// Events returns the event names sent to connID, in order
func (f *FakeTransport) Events(connID string) []string {
	envs := f.Envelopes(connID)
	names := make([]string, len(envs))
	for i, env := range envs {
		names[i] = env.Event
	}
	return names
}

// Reset forgets every frame sent so far
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = make(map[string][][]byte)
}

// Payload decodes the data of the i-th event sent to connID into T
func Payload[T any](f *FakeTransport, connID string, i int) T {
	envs := f.Envelopes(connID)
	if i < 0 || i >= len(envs) {
		panic("testutil: no such frame")
	}
	var payload T
	if err := json.Unmarshal(envs[i].Data, &payload); err != nil {
		panic("testutil: cannot decode payload: " + err.Error())
	}
	return payload
}

// LastPayload decodes the data of the most recent event named event sent to
// connID. ok is false when no such event was sent.
func LastPayload[T any](f *FakeTransport, connID, event string) (payload T, ok bool) {
	envs := f.Envelopes(connID)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event != event {
			continue
		}
		if err := json.Unmarshal(envs[i].Data, &payload); err != nil {
			panic("testutil: cannot decode payload: " + err.Error())
		}
		return payload, true
	}
	return payload, false
}

// Recorded is one room event seen by a FakeRecorder
type Recorded struct {
	Room  string
	Event domain.Outbound
}

// FakeRecorder keeps every recorded room event in memory
type FakeRecorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *FakeRecorder) Record(room string, ev domain.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Room: room, Event: ev})
}

// Recorded returns a copy of the events seen so far
func (r *FakeRecorder) Recorded() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Names returns the event names seen so far, in order
func (r *FakeRecorder) Names() []string {
	recorded := r.Recorded()
	names := make([]string, len(recorded))
	for i, rec := range recorded {
		names[i] = rec.Event.EventName()
	}
	return names
}
