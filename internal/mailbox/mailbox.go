// Package mailbox provides an unbounded FIFO used to hand values between a
// producer that must never block and a single consumer goroutine.
package mailbox

import "sync"

// Mailbox is an unbounded, closable FIFO. Push never blocks.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

// New constructs an empty Mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It reports false when the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = append(m.items, v)
	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every queued value in arrival order. The boolean
// is false once the mailbox has been closed.
func (m *Mailbox[T]) Drain() ([]T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false
	}
	items := m.items
	m.items = nil
	return items, true
}

// Ready is signalled after a Push and closed by Close. Wake-ups may be
// spurious; callers must Drain.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Len returns the number of queued values.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Closed reports whether Close has been called.
func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseIfEmpty closes the mailbox only when nothing is queued. It reports
// whether the mailbox is closed on return. A Push racing with it either
// lands before and keeps the mailbox open, or fails.
func (m *Mailbox[T]) CloseIfEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return true
	}
	if len(m.items) > 0 {
		return false
	}
	m.closed = true
	close(m.ready)
	return true
}

// Close discards queued values and wakes any waiter. Safe to call repeatedly.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.items = nil
	close(m.ready)
}
