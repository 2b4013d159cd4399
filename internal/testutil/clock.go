package testutil

import (
	"sync"
	"time"
)

// StepClock is a manually advanced wall clock for tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStepClock creates a clock reading start. A zero start means
// 2026-10-14T09:00:00Z.
func NewStepClock(start time.Time) *StepClock {
	if start.IsZero() {
		start = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	}
	return &StepClock{now: start}
}

// Now returns the current reading. It has the signature of time.Now so it
// can be passed wherever a clock func is accepted.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
func (c *StepClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
