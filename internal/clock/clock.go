// Package clock abstracts wall-clock time so timers in the buy flow can be
// driven manually in tests.
package clock

import "time"

// Clock is the time source used by pollers and the quote refresh timer.
type Clock interface {
	Now() time.Time
	// After waits for d to elapse and then sends the current time on the
	// returned channel.
	After(d time.Duration) <-chan time.Time
}

// Real is the system clock.
type Real struct{}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// OrReal returns c, or the system clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
