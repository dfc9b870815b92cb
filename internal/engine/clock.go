package engine

import "sync/atomic"

// Clock numbers processed intents. Numbers start at 1 and are never reused
// within a flow, so they order the transition log.
type Clock struct {
	last atomic.Int64
}

func NewClock() *Clock { return new(Clock) }

// NewClockAt returns a clock whose first number is start+1, for appending
// to a flow that already has recorded transitions.
func NewClockAt(start int64) *Clock {
	c := new(Clock)
	c.last.Store(start)
	return c
}

// Next issues the next number. Only the Run goroutine calls it.
func (c *Clock) Next() int64 { return c.last.Add(1) }

// Current returns the last issued number, or the start before any.
func (c *Clock) Current() int64 { return c.last.Load() }
