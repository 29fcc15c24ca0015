package room

import (
	"slices"
	"sync"
)

// DefaultRoom is the room every user joins.
const DefaultRoom = "general"

// Directory owns the rooms of one server instance.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewDirectory creates a directory containing the default room.
func NewDirectory(historyLimit int) *Directory {
	d := &Directory{rooms: make(map[string]*Room)}
	d.rooms[DefaultRoom] = New(DefaultRoom, historyLimit)
	return d
}

// Default returns the default room.
func (d *Directory) Default() *Room {
	r, _ := d.Get(DefaultRoom)
	return r
}

// Get returns the room called name.
func (d *Directory) Get(name string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[name]
	return r, ok
}

// Names returns all room names, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
