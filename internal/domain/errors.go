package domain

import "errors"

// Client input failures. None of them is fatal to the server and none of them
// leaves partial state behind.
var (
	ErrMissingUsername  = errors.New("username is required")
	ErrNameTaken        = errors.New("username is already taken")
	ErrAlreadyJoined    = errors.New("connection has already joined")
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message too long")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrInvalidPayload   = errors.New("invalid event payload")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// ErrUserNotFound is returned by registry lookups for connections that never
// joined or have already been removed.
var ErrUserNotFound = errors.New("user not found")

var clientMessages = []struct {
	err error
	msg string
}{
	{ErrMissingUsername, "Username is required"},
	{ErrNameTaken, "Username is already taken"},
	{ErrAlreadyJoined, "Already joined the chat"},
	{ErrNotAuthenticated, "User not authenticated"},
	{ErrEmptyMessage, "Message cannot be empty"},
	{ErrMessageTooLong, "Message too long (max 500 characters)"},
	{ErrUnknownEvent, "Unknown event"},
	{ErrInvalidPayload, "Invalid event payload"},
	{ErrRateLimited, "Too many events, slow down"},
}

// ClientMessage returns the text sent to a client in an error event for err.
func ClientMessage(err error) string {
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Internal server error"
}
