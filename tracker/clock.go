package tracker

import "time"

// Clock supplies the current time to the eye-presence gate.
// Tests substitute a clock that follows the timestamps of scripted lines.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
