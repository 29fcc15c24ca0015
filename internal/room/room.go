// Package room holds room membership and message history.
package room

import (
	"slices"
	"sync"

	"chatapp/internal/domain"
)

// Room is a named group of members sharing a message history.
//
// Membership and history each have their own lock. A third lock orders
// fan-out: every Enter, Exit, Post and Broadcast callback runs while holding
// it, so all members observe room events in the same order and a joining
// member sees each message either in its replayed history or live, never
// both and never neither.
type Room struct {
	name  string
	store *Store

	mu      sync.RWMutex
	members []domain.Member

	order sync.Mutex
}

// New creates an empty room keeping historyLimit messages.
func New(name string, historyLimit int) *Room {
	return &Room{
		name:  name,
		store: NewStore(historyLimit),
	}
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// Join adds m unless its connection is already a member. It reports whether
// the member was added.
func (r *Room) Join(m domain.Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(m.ConnectionID) >= 0 {
		return false
	}
	r.members = append(r.members, m)
	return true
}

// Leave removes the member bound to connID and reports whether there was
// one. A newer connection holding the same username is left alone.
func (r *Room) Leave(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(connID)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)
	return true
}

func (r *Room) indexOf(connID string) int {
	return slices.IndexFunc(r.members, func(m domain.Member) bool {
		return m.ConnectionID == connID
	})
}

// Members returns member usernames in join order.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Username
	}
	return names
}

// Recipients returns a snapshot of member connection ids, leaving out
// exclude when it is non-empty.
func (r *Room) Recipients(exclude string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.members))
	for _, m := range r.members {
		if exclude != "" && m.ConnectionID == exclude {
			continue
		}
		ids = append(ids, m.ConnectionID)
	}
	return ids
}

// History returns up to n of the newest messages, oldest first.
func (r *Room) History(n int) []domain.Message {
	return r.store.Recent(n)
}

// Enter joins m and calls deliver with the replay history (up to replay
// messages) and the connection ids of the other members.
func (r *Room) Enter(m domain.Member, replay int, deliver func(history []domain.Message, others []string)) {
	r.order.Lock()
	defer r.order.Unlock()

	r.Join(m)
	deliver(r.store.Recent(replay), r.Recipients(m.ConnectionID))
}

// Exit removes connID and calls deliver with the remaining members.
func (r *Room) Exit(connID string, deliver func(remaining []string)) {
	r.order.Lock()
	defer r.order.Unlock()

	r.Leave(connID)
	deliver(r.Recipients(""))
}

// Post appends msg to the history and calls deliver with every member,
// the author included.
func (r *Room) Post(msg domain.Message, deliver func(recipients []string)) {
	r.order.Lock()
	defer r.order.Unlock()

	r.store.Append(msg)
	deliver(r.Recipients(""))
}

// Broadcast calls deliver with every member except exclude.
func (r *Room) Broadcast(exclude string, deliver func(recipients []string)) {
	r.order.Lock()
	defer r.order.Unlock()

	deliver(r.Recipients(exclude))
}
