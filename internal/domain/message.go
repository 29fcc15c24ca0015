package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the longest accepted message body, in characters,
// measured after trimming.
const MaxMessageLength = 500

// Message represents a chat message. Messages are never mutated after they
// are created.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsGuest   bool      `json:"is_guest"`
}

// NormalizeBody trims surrounding whitespace from raw and validates the
// result.
func NormalizeBody(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}
