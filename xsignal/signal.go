// Package xsignal implements the "signals/slots" collapse described in
// spec.md's design notes: a small one-to-many synchronous callback list.
// Each Signal serializes its subscribers and isolates them from each
// other's panics, so one buggy subscriber cannot break the scheduler that
// emits the signal.
package xsignal

import "sync"

// Signal is a synchronous, ordered multicast callback list carrying a
// single payload type T.
type Signal[T any] struct {
	mu   sync.Mutex
	subs []*subscription[T]
	next uint64
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Token identifies a connected subscriber for later disconnection.
type Token uint64

// Connect registers fn to be called on every future Emit, returning a
// Token that can be passed to Disconnect.
func (s *Signal[T]) Connect(fn func(T)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.subs = append(s.subs, &subscription[T]{id: s.next, fn: fn})
	return Token(s.next)
}

// Disconnect removes a previously connected subscriber. It is a no-op if
// the token is unknown or already disconnected.
func (s *Signal[T]) Disconnect(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == uint64(tok) {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Emit invokes every connected subscriber, in connection order, with the
// given payload. A subscriber that panics is recovered and swallowed so it
// cannot break the caller's event loop; subsequent subscribers still run.
func (s *Signal[T]) Emit(payload T) {
	s.mu.Lock()
	subs := make([]*subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		callSafely(sub.fn, payload)
	}
}

func callSafely[T any](fn func(T), payload T) {
	defer func() { _ = recover() }()
	fn(payload)
}

// Len reports the number of currently connected subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
