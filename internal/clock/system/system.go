// Package system provides a real clock implementation.
package system

import "time"

// Clock implements bot.Clock using the local wall clock. Post timestamps are
// rendered in local time, so no UTC conversion happens here.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
