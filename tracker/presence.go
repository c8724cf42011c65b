package tracker

import (
	"time"

	"github.com/inttech/go-gazetrack/logger"
	"github.com/inttech/go-gazetrack/opengaze"
)

// presenceGate tracks how long each eye has been continuously valid.
//
// A zero time means the eye isn't currently seen. An eye's timer starts on its first valid
// report and resets on the first invalid one; lines without the eye's field leave it as is.
type presenceGate struct {
	hold       time.Duration
	leftSince  time.Time
	rightSince time.Time
	logger     logger.Logger
}

func newPresenceGate(hold time.Duration, l logger.Logger) *presenceGate {
	return &presenceGate{hold: hold, logger: l}
}

// observe feeds one validity report taken at now and reports whether both eyes have
// each been valid for at least the hold duration.
func (g *presenceGate) observe(v opengaze.EyeValidity, now time.Time) bool {
	g.leftSince = g.track("left", v.Left, g.leftSince, now)
	g.rightSince = g.track("right", v.Right, g.rightSince, now)

	if g.leftSince.IsZero() || g.rightSince.IsZero() {
		return false
	}

	return now.Sub(g.leftSince) >= g.hold && now.Sub(g.rightSince) >= g.hold
}

func (g *presenceGate) track(eye string, flag opengaze.Flag, since time.Time, now time.Time) time.Time {
	switch flag {
	case opengaze.FlagTrue:
		if since.IsZero() {
			g.logger.Debug("tracker identified eye", "eye", eye)
			return now
		}
	case opengaze.FlagFalse:
		if !since.IsZero() {
			g.logger.Debug("tracker lost eye", "eye", eye, "heldFor", now.Sub(since))
		}
		return time.Time{}
	}

	return since
}

// heldFor returns how long both eyes have been seen together.
func (g *presenceGate) heldFor(now time.Time) time.Duration {
	if g.leftSince.IsZero() || g.rightSince.IsZero() {
		return 0
	}

	latest := g.leftSince
	if g.rightSince.After(latest) {
		latest = g.rightSince
	}

	return now.Sub(latest)
}
