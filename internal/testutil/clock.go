package testutil

import (
	"sync"
	"time"
)

// TickingClock provides a thread-safe deterministic timestamp source
// for tests.
//
// Every call to Now advances a fixed epoch by one step, so the same
// test run always produces the same event timestamps and golden
// snapshots compare byte-identical.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type TickingClock struct {
	mu    sync.Mutex
	epoch time.Time
	step  time.Duration
	ticks int
}

// NewTickingClock creates a clock starting at the given epoch.
// The first Now() call returns epoch + step.
func NewTickingClock(epoch time.Time, step time.Duration) *TickingClock {
	return &TickingClock{epoch: epoch, step: step}
}

// NewAuditClock creates a clock at a fixed reference instant with one
// second ticks. Convenient default for lineage tests.
func NewAuditClock() *TickingClock {
	return NewTickingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

// Now advances the clock one step and returns the new instant.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.epoch.Add(time.Duration(c.ticks) * c.step)
}

// Ticks returns how many times Now has been called.
func (c *TickingClock) Ticks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}
