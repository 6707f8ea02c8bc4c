package service

import (
	"time"
)

// Timer measures how long an operation takes.
type Timer struct {
	Tag  string
	Then time.Time
}

func NewTimer(tag string) *Timer {
	return &Timer{
		Tag:  tag,
		Then: time.Now(),
	}
}

// Stop returns the time since the Timer started (or last stopped) and
// restarts it.
func (t *Timer) Stop() time.Duration {
	now := time.Now()
	d := now.Sub(t.Then)
	t.Then = now
	return d
}
