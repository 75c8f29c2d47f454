// Package clock issues replica timestamps that never go backwards.
package clock

import (
	"sync"
	"time"
)

// Resolution is the precision timestamps are kept with on the wire and in cursors.
const Resolution = time.Millisecond

// Clock is a hybrid logical clock over wall time: like Lamport's counter it only moves
// forward and is pushed past every timestamp observed from another node, but it advances
// in Resolution steps of real time.
type Clock struct {
	now  func() time.Time
	last time.Time
	mu   sync.Mutex
}

// New creates a clock reading physical time from now (time.Now when nil).
func New(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the current time, or one Resolution step past the last issued or observed
// timestamp if the physical clock is behind it.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(Resolution)
	if !t.After(c.last) {
		t = c.last.Add(Resolution)
	}
	c.last = t
	return t
}

// Observe moves the clock to a timestamp received from another node if it is ahead.
// Согласно алгоритму Лампорта: last = max(last, remote)
func (c *Clock) Observe(remote time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remote = remote.UTC().Truncate(Resolution)
	if remote.After(c.last) {
		c.last = remote
	}
}

// Last returns the last issued or observed timestamp without advancing the clock.
func (c *Clock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
