package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chatapp/internal/domain"

	"github.com/google/uuid"
)

// Counter for generating unique names
var idCounter atomic.Int64

func nextName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, idCounter.Add(1))
}

// BaseTime is the reference instant used by fixtures and clocks
var BaseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// MessageOptions allows customizing message fixture creation
type MessageOptions struct {
	ID        string
	Username  string
	Body      string
	Timestamp time.Time
	IsGuest   bool
}

// NewTestMessage creates a test message with sensible defaults
// Pass options to override specific fields
func NewTestMessage(opts ...func(*MessageOptions)) domain.Message {
	o := &MessageOptions{
		ID:        uuid.NewString(),
		Username:  nextName("user"),
		Body:      "hello",
		Timestamp: BaseTime,
	}

	for _, opt := range opts {
		opt(o)
	}

	return domain.Message{
		ID:        o.ID,
		Username:  o.Username,
		Body:      o.Body,
		Timestamp: o.Timestamp,
		IsGuest:   o.IsGuest,
	}
}

// WithMessageID sets the message ID
func WithMessageID(id string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.ID = id
	}
}

// WithAuthor sets the message author
func WithAuthor(username string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Username = username
	}
}

// WithBody sets the message text
func WithBody(body string) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Body = body
	}
}

// WithTimestamp sets the message timestamp
func WithTimestamp(t time.Time) func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.Timestamp = t
	}
}

// WithGuest marks the author as a guest
func WithGuest() func(*MessageOptions) {
	return func(o *MessageOptions) {
		o.IsGuest = true
	}
}

// NewTestMessages creates count messages "m0".."m<count-1>" one second apart
func NewTestMessages(count int) []domain.Message {
	messages := make([]domain.Message, count)
	for i := range messages {
		messages[i] = NewTestMessage(
			WithAuthor("alice"),
			WithBody(fmt.Sprintf("m%d", i)),
			WithTimestamp(BaseTime.Add(time.Duration(i)*time.Second)),
		)
	}
	return messages
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock starting at BaseTime
func NewClock() *Clock {
	return &Clock{now: BaseTime}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
