// Package pool recycles timers for bounded waits on hot paths, such as fanning a gaze sample
// out to every relay session.
package pool

import (
	"sync"
	"time"
)

var timers = sync.Pool{}

// GetTimer returns a timer that fires after d, reusing a pooled one when available.
//
// Hand the timer back with PutTimer once the wait is over.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timers.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}

	if t.Reset(d) {
		// still armed from a previous user, discard a stale tick
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. The caller must not use t afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timers.Put(t)
}
