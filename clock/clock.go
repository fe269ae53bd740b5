// Package clock provides an injectable wall clock.
package clock

import (
	"time"

	"github.com/warp/gym-credit/gym"
)

type Clock interface {
	Now() time.Time
}

// Today returns the calendar day of c.Now() in the clock's location.
func Today(c Clock) gym.Date {
	return gym.DateOf(c.Now())
}

type RealClock struct {
	loc *time.Location
}

// NewRealClock returns a clock reporting time in loc (UTC when nil).
func NewRealClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &RealClock{loc: loc}
}

func (c *RealClock) Now() time.Time {
	return time.Now().In(c.loc)
}

type MockClock struct {
	currentTime time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (c *MockClock) Now() time.Time {
	return c.currentTime
}

func (c *MockClock) Set(t time.Time) {
	c.currentTime = t
}

func (c *MockClock) Add(d time.Duration) {
	c.currentTime = c.currentTime.Add(d)
}

// AddDays moves the clock by whole calendar days.
func (c *MockClock) AddDays(n int) {
	c.currentTime = c.currentTime.AddDate(0, 0, n)
}
