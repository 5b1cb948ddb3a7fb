package parley

import "sync"

// mailbox hands items between the caller and the session loop.
type mailbox[T any] struct {
	mu    sync.Mutex
	items []T
}

func (m *mailbox[T]) Push(item T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushLocked(item)
}

// Drain returns all the items and empties the mailbox.
func (m *mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.drainLocked()
}

func (m *mailbox[T]) pushLocked(item T) {
	m.items = append(m.items, item)
}

func (m *mailbox[T]) drainLocked() []T {
	items := m.items
	m.items = nil
	return items
}
