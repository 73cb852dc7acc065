package engine

import "sync/atomic"

// Clock hands out execution sequence numbers. The first call to Next on a
// fresh clock returns 1, and every later call returns a larger number, even
// under concurrent Execute calls. Seq orders results and log lines from one
// engine without consulting wall time.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose next seq is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock that has already issued seq last, so Next
// continues from last+1. A CLI session resuming numbering uses this.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Next issues the next seq.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current reports the last issued seq, or the starting point if none.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
