package room

import (
	"sync"

	"chatapp/internal/domain"
)

// DefaultHistoryLimit is the number of messages a room keeps.
const DefaultHistoryLimit = 100

// Store is a fixed-capacity message log. Once full, every append evicts the
// oldest message.
type Store struct {
	mu   sync.RWMutex
	buf  []domain.Message
	head int // index of the oldest message
	size int
}

// NewStore creates a store holding at most capacity messages. Non-positive
// capacities fall back to DefaultHistoryLimit.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &Store{buf: make([]domain.Message, capacity)}
}

// Append adds msg at the tail.
func (s *Store) Append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := len(s.buf)
	s.buf[(s.head+s.size)%capacity] = msg
	if s.size < capacity {
		s.size++
		return
	}
	s.head = (s.head + 1) % capacity
}

// Recent returns up to n of the newest messages, oldest first. The result
// is a copy and never nil.
func (s *Store) Recent(n int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n = min(n, s.size)
	if n <= 0 {
		return []domain.Message{}
	}

	capacity := len(s.buf)
	start := s.head + s.size - n
	out := make([]domain.Message, n)
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+i)%capacity]
	}
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Capacity returns the maximum number of stored messages.
func (s *Store) Capacity() int {
	return len(s.buf)
}
