package tracker

import (
	"fmt"

	"github.com/inttech/go-gazetrack/opengaze"
)

// presenceFlags are enabled while waiting for both eyes, in this order.
var presenceFlags = []string{
	opengaze.OptTrackerDisplay,
	opengaze.OptEnableSendEyeLeft,
	opengaze.OptEnableSendEyeRight,
	opengaze.OptEnableSendData,
}

// Calibrate runs the calibration procedure until a run satisfies the calibration policy
// and returns the accepted outcome.
//
// A running stream is stopped first. Each attempt:
//
//  1. shows the tracker display and waits until both eyes have been continuously valid for
//     the presence hold duration (3 seconds by default), measured per eye;
//  2. starts calibration and waits for the calibration result marker;
//  3. fetches the result summary and checks it against the policy.
//
// Rejected runs are retried with no attempt limit, since a person is positioning themselves
// in front of the tracker. Use WithCalibrationAttemptHook to observe or bound the attempts.
//
// A malformed summary ends the call with an *opengaze.FormatError; channel failures end it
// with the I/O error and leave the client disconnected.
func (c *Client) Calibrate() (opengaze.CalibrationOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stateMgr.State() {
	case DisconnectedState:
		return opengaze.CalibrationOutcome{}, ErrNotConnected
	case StreamingState:
		c.logger.Info("stopping gaze stream before calibration")
		if err := c.stopDataLocked(); err != nil {
			return opengaze.CalibrationOutcome{}, err
		}
	}

	if err := c.stateMgr.transition(CalibratingState); err != nil {
		return opengaze.CalibrationOutcome{}, err
	}
	defer func() {
		if c.stateMgr.State().IsCalibrating() {
			_ = c.stateMgr.transition(ConnectedState)
		}
	}()

	for attempt := 1; ; attempt++ {
		c.metrics.incCalibrationAttemptCount()
		c.logger.Info("starting calibration", "attempt", attempt)

		outcome, summary, err := c.calibrateOnce()
		if err != nil {
			return opengaze.CalibrationOutcome{}, c.failLocked(err)
		}

		accepted := c.cfg.policy.Accept(outcome)
		switch {
		case accepted:
			c.logger.Info("calibration accepted", "attempt", attempt,
				"averageError", outcome.AverageError, "validPoints", outcome.ValidPointCount)
		case outcome.ValidPointCount < c.cfg.policy.MinValidPoints:
			c.metrics.incCalibrationRejectCount()
			c.logger.Info("some calibration points were invalid, rerunning", "attempt", attempt,
				"validPoints", outcome.ValidPointCount)
		default:
			c.metrics.incCalibrationRejectCount()
			c.logger.Info("calibration error was too high, rerunning", "attempt", attempt,
				"averageError", outcome.AverageError)
		}

		if err := c.setAll(opengaze.Off, opengaze.OptCalibrateStart, opengaze.OptCalibrateShow); err != nil {
			return opengaze.CalibrationOutcome{}, c.failLocked(err)
		}

		proceed := true
		if c.cfg.attemptHook != nil {
			proceed = c.cfg.attemptHook(CalibrationAttempt{
				Number:   attempt,
				Outcome:  outcome,
				Accepted: accepted,
				Summary:  summary,
			})
		}

		if accepted {
			return outcome, nil
		}
		if !proceed {
			c.logger.Warn("calibration aborted by attempt hook", "attempt", attempt)
			return outcome, ErrCalibrationAborted
		}
	}
}

// calibrateOnce runs a single calibration attempt and returns the decoded summary.
func (c *Client) calibrateOnce() (opengaze.CalibrationOutcome, string, error) {
	if err := c.waitUntilEyes(); err != nil {
		return opengaze.CalibrationOutcome{}, "", err
	}

	if err := c.setAll(opengaze.On, opengaze.OptCalibrateShow, opengaze.OptCalibrateStart); err != nil {
		return opengaze.CalibrationOutcome{}, "", err
	}

	for {
		line, err := c.nextLine()
		if err != nil {
			return opengaze.CalibrationOutcome{}, "", fmt.Errorf("wait for calibration result: %w", err)
		}
		if opengaze.IsCalibrationResult(line) {
			break
		}
	}

	summary, err := c.get(opengaze.OptCalibrateResultSummary)
	if err != nil {
		return opengaze.CalibrationOutcome{}, "", err
	}
	c.logger.Info("calibration result", "summary", summary)

	outcome, err := opengaze.DecodeCalibrationOutcome(summary)
	if err != nil {
		c.logger.Error("failed to decode calibration summary", "error", err)
		if cleanupErr := c.setAll(opengaze.Off, opengaze.OptCalibrateStart, opengaze.OptCalibrateShow); cleanupErr != nil {
			c.logger.Warn("failed to reset calibration flags", "error", cleanupErr)
			if isChannelError(cleanupErr) {
				return opengaze.CalibrationOutcome{}, summary, cleanupErr
			}
		}

		return opengaze.CalibrationOutcome{}, summary, err
	}

	return outcome, summary, nil
}

// waitUntilEyes shows the tracker display and blocks until both eyes have been valid for
// the presence hold duration, then hides the display again.
func (c *Client) waitUntilEyes() error {
	c.logger.Info("waiting until tracker sees both eyes")
	if err := c.setAll(opengaze.On, presenceFlags...); err != nil {
		return err
	}

	gate := newPresenceGate(c.cfg.presenceHold, c.logger)
	for {
		line, err := c.nextLine()
		if err != nil {
			return fmt.Errorf("wait for eyes: %w", err)
		}

		v, err := opengaze.DecodeEyeValidity(line)
		if err != nil {
			c.logger.Debug("ignored malformed eye validity", "error", err)
		}

		now := c.cfg.clock.Now()
		if gate.observe(v, now) {
			c.logger.Info("tracker has seen both eyes", "heldFor", gate.heldFor(now))
			break
		}
	}

	// reverse order: stop the stream first, hide the display last
	for i := len(presenceFlags) - 1; i >= 0; i-- {
		if err := c.set(presenceFlags[i], opengaze.Off, true); err != nil {
			return err
		}
	}

	return nil
}

// setAll sets every option to value, each acknowledgment-gated.
func (c *Client) setAll(value string, options ...string) error {
	for _, opt := range options {
		if err := c.set(opt, value, true); err != nil {
			return err
		}
	}

	return nil
}
