package tracker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inttech/go-gazetrack/opengaze"
	"github.com/stretchr/testify/require"
)

func TestClient_CalibrateAccepted(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	var states []ConnState
	client.AddStateChangeHandler(func(_, cur ConnState) { states = append(states, cur) })

	outcome, err := client.Calibrate()
	require.NoError(err)
	require.Equal(opengaze.CalibrationOutcome{AverageError: 12.5, ValidPointCount: 9}, outcome)
	require.True(client.State().IsConnected())
	require.Equal([]ConnState{CalibratingState, ConnectedState}, states)

	requireSubsequence(t, fake.received(),
		`<SET ID="TRACKER_DISPLAY" STATE="1" />`,
		`<SET ID="ENABLE_SEND_EYE_LEFT" STATE="1" />`,
		`<SET ID="ENABLE_SEND_EYE_RIGHT" STATE="1" />`,
		`<SET ID="ENABLE_SEND_DATA" STATE="1" />`,
		`<SET ID="ENABLE_SEND_DATA" STATE="0" />`,
		`<SET ID="ENABLE_SEND_EYE_RIGHT" STATE="0" />`,
		`<SET ID="ENABLE_SEND_EYE_LEFT" STATE="0" />`,
		`<SET ID="TRACKER_DISPLAY" STATE="0" />`,
		`<SET ID="CALIBRATE_SHOW" STATE="1" />`,
		`<SET ID="CALIBRATE_START" STATE="1" />`,
		`<GET ID="CALIBRATE_RESULT_SUMMARY" />`,
		`<SET ID="CALIBRATE_START" STATE="0" />`,
		`<SET ID="CALIBRATE_SHOW" STATE="0" />`,
	)

	metrics := client.GetMetrics()
	require.EqualValues(1, metrics.CalibrationAttemptCount.Load())
	require.Zero(metrics.CalibrationRejectCount.Load())
}

func TestClient_CalibrateRetriesUntilAccepted(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	fake.queueSummary(
		summaryLine(8, 10.0),
		summaryLine(9, 40.0),
		summaryLine(9, 39.9),
	)

	var attempts []CalibrationAttempt
	client := newTestClient(t, fake, WithCalibrationAttemptHook(func(a CalibrationAttempt) bool {
		attempts = append(attempts, a)
		return true
	}))
	require.NoError(client.Connect())

	outcome, err := client.Calibrate()
	require.NoError(err)
	require.Equal(9, outcome.ValidPointCount)
	require.InDelta(39.9, outcome.AverageError, 1e-9)

	require.Len(attempts, 3)
	for i, want := range []bool{false, false, true} {
		require.Equal(i+1, attempts[i].Number)
		require.Equal(want, attempts[i].Accepted)
	}
	require.Equal(summaryLine(8, 10.0), attempts[0].Summary)

	// every attempt starts over with the eye-presence gate
	require.Equal(3, fake.countReceived(`<SET ID="TRACKER_DISPLAY" STATE="1" />`))
	require.Equal(3, fake.countReceived(`<SET ID="CALIBRATE_START" STATE="1" />`))

	metrics := client.GetMetrics()
	require.EqualValues(3, metrics.CalibrationAttemptCount.Load())
	require.EqualValues(2, metrics.CalibrationRejectCount.Load())
}

func TestClient_CalibrateCustomPolicy(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	fake.queueSummary(summaryLine(6, 45.0))

	client := newTestClient(t, fake, WithCalibrationPolicy(5, 50))
	require.NoError(client.Connect())

	outcome, err := client.Calibrate()
	require.NoError(err)
	require.Equal(6, outcome.ValidPointCount)
	require.EqualValues(1, client.GetMetrics().CalibrationAttemptCount.Load())
}

func TestClient_CalibrateAbortedByHook(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	fake.queueSummary(summaryLine(8, 10.0), summaryLine(7, 11.0), summaryLine(9, 5.0))

	client := newTestClient(t, fake, WithCalibrationAttemptHook(func(a CalibrationAttempt) bool {
		return a.Number < 2
	}))
	require.NoError(client.Connect())

	outcome, err := client.Calibrate()
	require.ErrorIs(err, ErrCalibrationAborted)
	require.Equal(opengaze.CalibrationOutcome{AverageError: 11.0, ValidPointCount: 7}, outcome)
	require.True(client.State().IsConnected())
	require.EqualValues(2, client.GetMetrics().CalibrationAttemptCount.Load())
}

func TestClient_CalibrateStopsStream(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	var lateSamples atomic.Int32
	rec := &sampleRecorder{onEach: func(opengaze.GazeSample) {
		if fake.hasReceived(`<SET ID="TRACKER_DISPLAY" STATE="1" />`) {
			lateSamples.Add(1)
		}
	}}
	require.NoError(client.StartData(rec))
	require.Eventually(func() bool { return rec.count() >= 5 }, 2*time.Second, time.Millisecond)

	_, err := client.Calibrate()
	require.NoError(err)
	require.True(client.State().IsConnected())
	require.Zero(lateSamples.Load())

	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	require.Equal(n, rec.count())
}

func TestClient_CalibrateMalformedSummary(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	fake.queueSummary(`<ACK ID="CALIBRATE_RESULT_SUMMARY" VALID_POINTS="9" />`)

	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	_, err := client.Calibrate()
	var formatErr *opengaze.FormatError
	require.True(errors.As(err, &formatErr))
	require.Equal(opengaze.FieldAverageError, formatErr.Field)
	require.ErrorIs(err, opengaze.ErrFieldMissing)

	require.True(client.State().IsConnected())
	requireSubsequence(t, fake.received(),
		`<GET ID="CALIBRATE_RESULT_SUMMARY" />`,
		`<SET ID="CALIBRATE_START" STATE="0" />`,
		`<SET ID="CALIBRATE_SHOW" STATE="0" />`,
	)

	// the session is still usable
	outcome, err := client.Calibrate()
	require.NoError(err)
	require.Equal(9, outcome.ValidPointCount)
}

func TestClient_CalibratePeerClosed(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t, withManualStream())
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	done := make(chan error, 1)
	go func() {
		_, err := client.Calibrate()
		done <- err
	}()

	require.Eventually(func() bool {
		return fake.hasReceived(`<SET ID="ENABLE_SEND_DATA" STATE="1" />`)
	}, 2*time.Second, time.Millisecond)
	fake.closePeer()

	select {
	case err := <-done:
		require.True(isChannelError(err))
	case <-time.After(2 * time.Second):
		require.Fail("Calibrate didn't return after the tracker went away")
	}
	require.True(client.State().IsDisconnected())
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	reads int
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reads++
	c.now = c.now.Add(c.step)

	return c.now
}

func TestClient_CalibratePresenceUsesClock(t *testing.T) {
	require := require.New(t)

	fake := newFakeTracker(t)
	clock := &stepClock{now: time.Unix(1_700_000_000, 0), step: time.Second}
	client := newTestClient(t, fake, WithClock(clock), WithPresenceHold(3*time.Second))
	require.NoError(client.Connect())

	start := time.Now()
	_, err := client.Calibrate()
	require.NoError(err)
	require.Less(time.Since(start), 2*time.Second)

	clock.mu.Lock()
	defer clock.mu.Unlock()
	require.Equal(4, clock.reads)
}

func TestClient_CloseAbortsCalibrate(t *testing.T) {
	require := require.New(t)

	// no data lines: the eyes are never seen and Calibrate waits indefinitely
	fake := newFakeTracker(t, withManualStream())
	client := newTestClient(t, fake)
	require.NoError(client.Connect())

	done := make(chan error, 1)
	go func() {
		_, err := client.Calibrate()
		done <- err
	}()

	require.Eventually(func() bool {
		return fake.hasReceived(`<SET ID="ENABLE_SEND_DATA" STATE="1" />`)
	}, 2*time.Second, time.Millisecond)
	require.True(client.State().IsCalibrating())

	require.NoError(client.Close())

	select {
	case err := <-done:
		require.ErrorIs(err, ErrChannelClosed)
		require.True(isChannelError(err))
	case <-time.After(2 * time.Second):
		require.Fail("Calibrate wasn't aborted by Close")
	}
	require.True(client.State().IsDisconnected())

	disconnected := make(chan error, 1)
	go func() { disconnected <- client.Disconnect() }()
	select {
	case err := <-disconnected:
		require.NoError(err)
	case <-time.After(2 * time.Second):
		require.Fail("Disconnect blocked after Close")
	}

	require.NoError(client.Connect())
	require.True(client.State().IsConnected())
}
