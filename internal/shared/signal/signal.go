// Package signal provides an observable value that fans out every update to
// its subscribers in publish order.
package signal

import "sync"

// DefaultBuffer is the per-subscriber buffer used when Subscribe is called with a non-positive size.
const DefaultBuffer = 16

// Signal holds the latest value of T and delivers each new value to all subscribers.
//
// Publish is serialized, so every subscriber observes values in emission order.
// A subscriber that falls behind loses its oldest pending value rather than
// blocking the publisher. After Close, Publish is a no-op.
type Signal[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// New returns an empty Signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{subs: make(map[uint64]chan T)}
}

// Value returns the last published value and whether anything was published yet.
func (s *Signal[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Publish stores v as the current value and delivers it to every subscriber.
// It reports false when the signal is closed.
func (s *Signal[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.value = v
	s.has = true
	for _, ch := range s.subs {
		deliver(ch, v)
	}
	return true
}

// Subscribe registers a new subscriber. The current value, if any, is replayed first.
// The returned cancel func unregisters the subscriber and closes the channel; it is
// safe to call more than once. Subscribing to a closed signal yields a closed channel.
func (s *Signal[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.has {
		ch <- s.value
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close stops the signal: pending subscribers have their channels closed and
// later publishes are dropped. Close is idempotent and reports whether this call closed it.
func (s *Signal[T]) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	return true
}

// Closed reports whether Close has been called.
func (s *Signal[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver sends v without blocking, evicting the oldest queued value when ch is full.
func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
