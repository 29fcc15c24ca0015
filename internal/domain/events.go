package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names.
const (
	EventJoinChat     = "join_chat"
	EventSendMessage  = "send_message"
	EventTyping       = "typing"
	EventStopTyping   = "stop_typing"
	EventPing         = "ping"
	EventGetUserCount = "get_user_count"
)

// Outbound event names.
const (
	EventConnectionResponse = "connection_response"
	EventWelcome            = "welcome"
	EventError              = "error"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventUsersList          = "users_list"
	EventMessageHistory     = "message_history"
	EventNewMessage         = "new_message"
	EventUserTyping         = "user_typing"
	EventUserStopTyping     = "user_stop_typing"
	EventPong               = "pong"
	EventUserCount          = "user_count"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is an event received from a client.
type Inbound interface {
	EventName() string
	inbound()
}

type JoinChat struct {
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

type SendMessage struct {
	Message string `json:"message"`
}

type Typing struct{}

type StopTyping struct{}

type Ping struct{}

type GetUserCount struct{}

func (JoinChat) EventName() string     { return EventJoinChat }
func (SendMessage) EventName() string  { return EventSendMessage }
func (Typing) EventName() string       { return EventTyping }
func (StopTyping) EventName() string   { return EventStopTyping }
func (Ping) EventName() string         { return EventPing }
func (GetUserCount) EventName() string { return EventGetUserCount }

func (JoinChat) inbound()     {}
func (SendMessage) inbound()  {}
func (Typing) inbound()       {}
func (StopTyping) inbound()   {}
func (Ping) inbound()         {}
func (GetUserCount) inbound() {}

// DecodeInbound parses a client frame into its event variant. Unknown event
// names fail with ErrUnknownEvent; payloads with unknown fields or wrong
// field types fail with ErrInvalidPayload.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := decodeStrict(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case EventJoinChat:
		return decodePayload[JoinChat](env.Data)
	case EventSendMessage:
		return decodePayload[SendMessage](env.Data)
	case EventTyping:
		return decodePayload[Typing](env.Data)
	case EventStopTyping:
		return decodePayload[StopTyping](env.Data)
	case EventPing:
		return decodePayload[Ping](env.Data)
	case EventGetUserCount:
		return decodePayload[GetUserCount](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodePayload[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := decodeStrict(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, v.EventName(), err)
	}
	return v, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Outbound is an event sent to one or more clients.
type Outbound interface {
	EventName() string
	outbound()
}

type ConnectionResponse struct {
	Status    string    `json:"status"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Welcome struct {
	Message   string    `json:"message"`
	Username  string    `json:"username"`
	IsGuest   bool      `json:"is_guest"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type UserJoined struct {
	Username  string    `json:"username"`
	IsGuest   bool      `json:"is_guest"`
	Timestamp time.Time `json:"timestamp"`
	UserCount int       `json:"user_count"`
}

type UserLeft struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	UserCount int       `json:"user_count"`
}

type UsersList struct {
	Users []UserSummary `json:"users"`
	Count int           `json:"count"`
}

type MessageHistory struct {
	Messages []Message `json:"messages"`
}

// NewMessage carries a posted message; its fields are flattened into the
// event payload.
type NewMessage struct {
	Message
}

type UserTyping struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type UserStopTyping struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

type UserCount struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func (ConnectionResponse) EventName() string { return EventConnectionResponse }
func (Welcome) EventName() string            { return EventWelcome }
func (ErrorEvent) EventName() string         { return EventError }
func (UserJoined) EventName() string         { return EventUserJoined }
func (UserLeft) EventName() string           { return EventUserLeft }
func (UsersList) EventName() string          { return EventUsersList }
func (MessageHistory) EventName() string     { return EventMessageHistory }
func (NewMessage) EventName() string         { return EventNewMessage }
func (UserTyping) EventName() string         { return EventUserTyping }
func (UserStopTyping) EventName() string     { return EventUserStopTyping }
func (Pong) EventName() string               { return EventPong }
func (UserCount) EventName() string          { return EventUserCount }

func (ConnectionResponse) outbound() {}
func (Welcome) outbound()            {}
func (ErrorEvent) outbound()         {}
func (UserJoined) outbound()         {}
func (UserLeft) outbound()           {}
func (UsersList) outbound()          {}
func (MessageHistory) outbound()     {}
func (NewMessage) outbound()         {}
func (UserTyping) outbound()         {}
func (UserStopTyping) outbound()     {}
func (Pong) outbound()               {}
func (UserCount) outbound()          {}

// EncodeOutbound renders ev as a wire frame.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}
