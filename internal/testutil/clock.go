package testutil

import "sync"

// Clock is a thread-safe manual clock for tests. It hands out millisecond
// timestamps that only move when the test says so, keeping claim times,
// cooldown deadlines, and edit stamps reproducible.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock creates a clock frozen at start.
func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

// Now returns the current timestamp.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d milliseconds and returns the new
// timestamp.
func (c *Clock) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Set jumps the clock to a specific timestamp.
func (c *Clock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
