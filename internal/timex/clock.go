package timex

import "time"

// Clock abstracts time.Now so scheduling logic can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	Current time.Time
}

func NewFakeClock(t time.Time) *FakeClock { return &FakeClock{Current: t} }

func (c *FakeClock) Now() time.Time { return c.Current }

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }
