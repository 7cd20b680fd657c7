package scrobbler

import "time"

// Clock is the time source of the listen time accumulator.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
