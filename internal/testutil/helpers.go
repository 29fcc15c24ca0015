package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"chatapp/internal/domain"

	"github.com/gorilla/websocket"
)

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertTrue fails the test if condition is false
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("expected true: %s", msg)
	}
}

// AssertFalse fails the test if condition is true
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("expected false: %s", msg)
	}
}

// HTTP Test Helpers

// AssertStatusCode fails if the response status code doesn't match expected
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSONContains fails if the top-level JSON field key of the response
// body is missing or differs from expected. Numbers decode as float64. The
// body is left unread.
func AssertJSONContains(t *testing.T, w *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()

	var fields map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &fields); err != nil {
		t.Fatalf("response is not a JSON object: %v. Body: %s", err, w.Body.String())
	}

	got, ok := fields[key]
	switch {
	case !ok:
		t.Errorf("JSON response missing key %q. Body: %s", key, w.Body.String())
	case !reflect.DeepEqual(got, expected):
		t.Errorf("JSON key %q: got %v (%T), want %v (%T)", key, got, got, expected, expected)
	}
}

// AssertHeader fails if the response header doesn't match expected value
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, expected string) {
	t.Helper()
	got := w.Header().Get(key)
	if got != expected {
		t.Errorf("header %q: got %q, want %q", key, got, expected)
	}
}

// DecodeJSON decodes JSON response body into the given struct
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v. Body: %s", err, w.Body.String())
	}
	return result
}

// Slice Helpers

// AssertLen fails if the slice doesn't have the expected length
func AssertLen[T any](t *testing.T, slice []T, expected int) {
	t.Helper()
	if len(slice) != expected {
		t.Errorf("expected length %d, got %d", expected, len(slice))
	}
}

// AssertEmpty fails if the slice is not empty
func AssertEmpty[T any](t *testing.T, slice []T) {
	t.Helper()
	if len(slice) != 0 {
		t.Errorf("expected empty slice, got %d elements", len(slice))
	}
}

// WebSocket Helpers

// DialWS opens a websocket to url (http:// or ws://) and closes it when the
// test ends
func DialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	url = "ws" + strings.TrimPrefix(url, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// WriteEvent sends one client event
func WriteEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("failed to write %s: %v", event, err)
	}
}

// ReadEvent reads the next server event, failing after two seconds
func ReadEvent(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	var env domain.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return env
}

// ExpectEvent reads events until one named event arrives and decodes its
// payload into T. Events in skip are discarded; anything else fails the test.
func ExpectEvent[T any](t *testing.T, conn *websocket.Conn, event string, skip ...string) T {
	t.Helper()
	for {
		env := ReadEvent(t, conn)
		if env.Event == event {
			var payload T
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				t.Fatalf("failed to decode %s payload: %v", event, err)
			}
			return payload
		}
		if !slices.Contains(skip, env.Event) {
			t.Fatalf("expected %s, got %s: %s", event, env.Event, env.Data)
		}
	}
}
