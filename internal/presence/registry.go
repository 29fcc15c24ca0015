// Package presence tracks which connections belong to authenticated users and
// keeps usernames unique among them.
package presence

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"chatapp/internal/domain"
)

type entry struct {
	user domain.User
	seq  uint64
}

// Registry maps active connections to users. A single mutex covers both
// indexes so the name check and the insert happen as one step.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*entry
	byName map[string]string // username -> connection id
	seq    uint64
	now    func() time.Time
}

// NewRegistry creates an empty registry. A nil clock defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		byConn: make(map[string]*entry),
		byName: make(map[string]string),
		now:    now,
	}
}

// Register creates the user for connID. Usernames are compared exactly,
// case included.
func (r *Registry) Register(connID, username string, isGuest bool) (domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return domain.User{}, domain.ErrMissingUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, joined := r.byConn[connID]; joined {
		return domain.User{}, domain.ErrAlreadyJoined
	}
	if _, taken := r.byName[username]; taken {
		return domain.User{}, domain.ErrNameTaken
	}

	now := r.now()
	r.seq++
	e := &entry{
		user: domain.User{
			Username:     username,
			ConnectionID: connID,
			IsGuest:      isGuest,
			JoinedAt:     now,
			LastSeen:     now,
		},
		seq: r.seq,
	}
	r.byConn[connID] = e
	r.byName[username] = connID

	return e.user, nil
}

// Lookup returns the user bound to connID.
func (r *Registry) Lookup(connID string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byConn[connID]
	if !ok {
		return domain.User{}, domain.ErrNotAuthenticated
	}
	return e.user, nil
}

// Remove deletes and returns the user bound to connID. Only one caller can
// ever receive a given user.
func (r *Registry) Remove(connID string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	delete(r.byConn, connID)
	delete(r.byName, e.user.Username)

	return e.user, nil
}

// Count returns the number of active users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Touch refreshes the last-seen time of connID. Unknown connections are
// ignored.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byConn[connID]; ok {
		e.user.LastSeen = r.now()
	}
}

// List returns a snapshot of all active users in join order.
func (r *Registry) List() []domain.User {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.byConn))
	for _, e := range r.byConn {
		entries = append(entries, e)
	}
	users := make([]domain.User, 0, len(entries))
	slices.SortFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.seq, b.seq)
	})
	for _, e := range entries {
		users = append(users, e.user)
	}
	r.mu.RUnlock()

	return users
}
