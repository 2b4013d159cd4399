// Package trigger provides a coalescing wake-up signal.
//
// A Signal collapses any number of Notify calls made while nobody is
// listening into a single pending wake-up. It is the primitive behind the
// drain scheduler and the catalog refresh worker: both must react to bursts
// of events with one unit of work, never with one unit per event.
package trigger

import "sync"

// Signal is a size-1 coalescing notification channel.
//
// Thread-safety: Notify and Close may be called from any goroutine.
type Signal struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// New creates a Signal with no pending notification.
func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify marks a wake-up as pending. It never blocks; a notification made
// while one is already pending is absorbed. Returns false after Close.
func (s *Signal) Notify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
	return true
}

// C returns the channel to select on. A receive consumes the pending
// notification. The channel is closed by Close.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Pending reports whether a notification is waiting, consuming it.
func (s *Signal) Pending() bool {
	select {
	case _, ok := <-s.ch:
		return ok
	default:
		return false
	}
}

// Close wakes every waiter and disables further notifications.
func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
