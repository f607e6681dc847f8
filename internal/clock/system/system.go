// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock reads the current time in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock that reports UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock that reports times in loc. A nil loc means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.location())
}

// Today returns the current calendar date in the clock's location.
func (c *Clock) Today() civil.Date {
	return civil.DateOf(c.Now())
}

func (c *Clock) location() *time.Location {
	if c == nil || c.loc == nil {
		return time.UTC
	}
	return c.loc
}
