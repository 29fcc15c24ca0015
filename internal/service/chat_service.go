package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatapp/internal/domain"
	"chatapp/internal/observability"
	"chatapp/internal/presence"
	"chatapp/internal/room"

	"github.com/google/uuid"
)

const (
	// HistoryReplay is the number of messages replayed to a joining user.
	HistoryReplay = 20
	// HistoryQuery is the number of messages returned by the messages API.
	HistoryQuery = 50
)

// Transport delivers encoded frames to a single connection. Send must not
// block; a connection that cannot accept a frame is dropped by the transport
// and later reported through Disconnect.
type Transport interface {
	Send(connID string, frame []byte) error
}

// Recorder receives room events after they have been applied. Record must
// not block.
type Recorder interface {
	Record(room string, ev domain.Outbound)
}

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	StateClosed ConnState = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s ConnState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// ChatService routes client events for one server instance. It owns the
// connection table and works on the injected registry and rooms.
type ChatService struct {
	transport Transport
	registry  *presence.Registry
	room      *room.Room
	recorders []Recorder
	now       func() time.Time

	mu    sync.Mutex
	conns map[string]struct{}
}

// Option configures a ChatService.
type Option func(*ChatService)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) {
		s.now = now
	}
}

// WithRecorders adds recorders that observe room events.
func WithRecorders(recorders ...Recorder) Option {
	return func(s *ChatService) {
		s.recorders = append(s.recorders, recorders...)
	}
}

func NewChatService(transport Transport, registry *presence.Registry, rooms *room.Directory, opts ...Option) *ChatService {
	s := &ChatService{
		transport: transport,
		registry:  registry,
		room:      rooms.Default(),
		now:       time.Now,
		conns:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect registers a new unauthenticated connection and acknowledges it.
func (s *ChatService) Connect(connID string) {
	s.mu.Lock()
	s.conns[connID] = struct{}{}
	s.mu.Unlock()

	slog.Info("client connected", slog.String("connection_id", connID))

	s.send(connID, domain.ConnectionResponse{
		Status:    "connected",
		SessionID: connID,
		Timestamp: s.now(),
	})
}

// Disconnect closes connID. Authenticated users are removed from the
// registry and the room and the remaining members are told. Repeated calls
// are no-ops.
func (s *ChatService) Disconnect(connID string) {
	s.mu.Lock()
	_, open := s.conns[connID]
	delete(s.conns, connID)
	s.mu.Unlock()

	if !open {
		return
	}

	user, err := s.registry.Remove(connID)
	if err != nil {
		slog.Info("client disconnected", slog.String("connection_id", connID))
		return
	}
	observability.ChatUsersActive.Dec()

	s.room.Exit(connID, func(remaining []string) {
		left := domain.UserLeft{
			Username:  user.Username,
			Timestamp: s.now(),
			UserCount: s.registry.Count(),
		}
		s.fanOut(remaining, left)
		s.record(left)
	})

	slog.Info("user left",
		slog.String("connection_id", connID),
		slog.String("username", user.Username))
}

// State reports the lifecycle state of connID.
func (s *ChatService) State(connID string) ConnState {
	s.mu.Lock()
	_, open := s.conns[connID]
	s.mu.Unlock()

	if !open {
		return StateClosed
	}
	if _, err := s.registry.Lookup(connID); err == nil {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// HandleMessage decodes a client frame and routes it. Frames from closed
// connections are ignored.
func (s *ChatService) HandleMessage(connID string, raw []byte) {
	if s.State(connID) == StateClosed {
		slog.Debug("dropping event from closed connection", slog.String("connection_id", connID))
		return
	}

	in, err := domain.DecodeInbound(raw)
	if err != nil {
		observability.WebSocketEventsReceived.WithLabelValues("invalid", "rejected").Inc()
		slog.Warn("invalid client event",
			slog.String("connection_id", connID),
			slog.String("error", err.Error()))
		s.Reject(connID, err)
		return
	}

	s.HandleEvent(connID, in)
}

// HandleEvent routes a decoded event.
func (s *ChatService) HandleEvent(connID string, in domain.Inbound) {
	var err error
	switch ev := in.(type) {
	case domain.JoinChat:
		err = s.joinChat(connID, ev)
	case domain.SendMessage:
		err = s.sendMessage(connID, ev)
	case domain.Typing:
		s.typing(connID, true)
	case domain.StopTyping:
		s.typing(connID, false)
	case domain.Ping:
		s.send(connID, domain.Pong{Timestamp: s.now()})
	case domain.GetUserCount:
		s.userCount(connID)
	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnknownEvent, in)
	}

	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		s.Reject(connID, err)
	}
	observability.WebSocketEventsReceived.WithLabelValues(in.EventName(), outcome).Inc()
}

// Reject reports err to connID only.
func (s *ChatService) Reject(connID string, err error) {
	s.send(connID, domain.ErrorEvent{Message: domain.ClientMessage(err)})
}

func (s *ChatService) joinChat(connID string, req domain.JoinChat) error {
	user, err := s.registry.Register(connID, req.Username, req.IsGuest)
	if err != nil {
		return err
	}
	observability.ChatUsersActive.Inc()

	member := domain.Member{ConnectionID: connID, Username: user.Username}
	s.room.Enter(member, HistoryReplay, func(history []domain.Message, others []string) {
		s.send(connID, domain.Welcome{
			Message:   "Welcome to ChatApp, " + user.Username + "!",
			Username:  user.Username,
			IsGuest:   user.IsGuest,
			Timestamp: s.now(),
		})

		users := s.registry.List()
		summaries := make([]domain.UserSummary, len(users))
		for i, u := range users {
			summaries[i] = u.Summary()
		}
		s.send(connID, domain.UsersList{Users: summaries, Count: len(summaries)})

		if len(history) > 0 {
			s.send(connID, domain.MessageHistory{Messages: history})
		}

		joined := domain.UserJoined{
			Username:  user.Username,
			IsGuest:   user.IsGuest,
			Timestamp: s.now(),
			UserCount: len(users),
		}
		s.fanOut(others, joined)
		s.record(joined)
	})

	slog.Info("user joined",
		slog.String("connection_id", connID),
		slog.String("username", user.Username),
		slog.Bool("is_guest", user.IsGuest))
	return nil
}

func (s *ChatService) sendMessage(connID string, req domain.SendMessage) error {
	user, err := s.registry.Lookup(connID)
	if err != nil {
		return err
	}

	body, err := domain.NormalizeBody(req.Message)
	if err != nil {
		return err
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Body:      body,
		Timestamp: s.now(),
		IsGuest:   user.IsGuest,
	}

	s.room.Post(msg, func(recipients []string) {
		ev := domain.NewMessage{Message: msg}
		s.fanOut(recipients, ev)
		s.record(ev)
	})
	s.registry.Touch(connID)
	observability.ChatMessagesPosted.WithLabelValues(s.room.Name()).Inc()

	slog.Debug("message posted",
		slog.String("username", user.Username),
		slog.String("message_id", msg.ID))
	return nil
}

// typing notifies the other members. Unauthenticated senders are ignored.
func (s *ChatService) typing(connID string, started bool) {
	user, err := s.registry.Lookup(connID)
	if err != nil {
		return
	}

	var ev domain.Outbound = domain.UserStopTyping{Username: user.Username, Timestamp: s.now()}
	if started {
		ev = domain.UserTyping{Username: user.Username, Timestamp: s.now()}
	}
	s.room.Broadcast(connID, func(recipients []string) {
		s.fanOut(recipients, ev)
	})
}

func (s *ChatService) userCount(connID string) {
	if _, err := s.registry.Lookup(connID); err != nil {
		return
	}
	s.send(connID, domain.UserCount{Count: s.registry.Count(), Timestamp: s.now()})
}

// Users returns all active users in join order.
func (s *ChatService) Users() []domain.User {
	return s.registry.List()
}

// UserCount returns the number of active users.
func (s *ChatService) UserCount() int {
	return s.registry.Count()
}

// RecentMessages returns up to n of the newest messages of the default room.
func (s *ChatService) RecentMessages(n int) []domain.Message {
	return s.room.History(n)
}

// RoomMembers returns the usernames in the default room.
func (s *ChatService) RoomMembers() []string {
	return s.room.Members()
}

func (s *ChatService) send(connID string, ev domain.Outbound) {
	frame, err := domain.EncodeOutbound(ev)
	if err != nil {
		slog.Error("failed to encode event",
			slog.String("event", ev.EventName()),
			slog.String("error", err.Error()))
		return
	}
	s.deliver(connID, ev.EventName(), frame)
}

// fanOut encodes ev once and queues it for each recipient.
func (s *ChatService) fanOut(recipients []string, ev domain.Outbound) {
	if len(recipients) == 0 {
		return
	}
	frame, err := domain.EncodeOutbound(ev)
	if err != nil {
		slog.Error("failed to encode event",
			slog.String("event", ev.EventName()),
			slog.String("error", err.Error()))
		return
	}
	for _, id := range recipients {
		s.deliver(id, ev.EventName(), frame)
	}
}

func (s *ChatService) deliver(connID, event string, frame []byte) {
	if err := s.transport.Send(connID, frame); err != nil {
		observability.WebSocketSendFailures.Inc()
		slog.Warn("failed to deliver event",
			slog.String("connection_id", connID),
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	observability.WebSocketMessagesSent.WithLabelValues(event).Inc()
}

func (s *ChatService) record(ev domain.Outbound) {
	for _, r := range s.recorders {
		r.Record(s.room.Name(), ev)
	}
}
