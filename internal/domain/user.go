package domain

import "time"

// User is an authenticated chat participant bound to exactly one connection.
type User struct {
	Username     string    `json:"username"`
	ConnectionID string    `json:"session_id"`
	IsGuest      bool      `json:"is_guest"`
	JoinedAt     time.Time `json:"joined_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// UserSummary is the public view of a user sent in users_list events.
type UserSummary struct {
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

// Summary returns the public view of u.
func (u User) Summary() UserSummary {
	return UserSummary{Username: u.Username, IsGuest: u.IsGuest}
}

// Member is a room member: the username and the connection that receives
// the room's events on its behalf.
type Member struct {
	ConnectionID string
	Username     string
}
