package session

import (
	"sync"
	"sync/atomic"
)

// Bus broadcasts the auth-changed signal to every subscriber.
//
// Lifecycle: created at app start, closed at shutdown.
// Delivery is non-blocking and coalescing: each subscriber buffers at most one
// pending signal, so a slow subscriber observes "something changed" once rather
// than once per publish. Publishing after Close is a no-op.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]chan struct{}
	next   uint64
	closed bool

	published atomic.Uint64
}

// NewBus constructs an open Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan struct{})}
}

// Subscribe registers a listener. The returned cancel func is idempotent and
// closes the channel. Subscribing to a closed Bus yields an already-closed channel.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish signals every subscriber once.
func (b *Bus) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.published.Add(1)
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending.
		}
	}
}

// Published returns how many signals have been broadcast.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Close closes every subscriber channel (idempotent).
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
