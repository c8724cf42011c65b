package tracker

import (
	"sync/atomic"
)

// ClientMetrics contains atomic metrics for a tracker client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ClientMetrics struct {
	// LineRecvCount indicates the number of lines received from the tracker.
	LineRecvCount atomic.Uint64
	// LineSendCount indicates the number of command lines sent to the tracker.
	LineSendCount atomic.Uint64
	// AckCount indicates the number of matched acknowledgments.
	AckCount atomic.Uint64
	// AckSkipCount indicates the number of lines discarded while waiting for an acknowledgment.
	AckSkipCount atomic.Uint64

	// SampleCount indicates the number of gaze samples delivered to listeners.
	SampleCount atomic.Uint64
	// NonSampleCount indicates the number of streamed lines that weren't gaze samples.
	NonSampleCount atomic.Uint64
	// SampleErrCount indicates the number of streamed lines with a malformed sample.
	SampleErrCount atomic.Uint64

	// CalibrationAttemptCount indicates the number of calibration runs.
	CalibrationAttemptCount atomic.Uint64
	// CalibrationRejectCount indicates the number of calibration runs rejected by the policy.
	CalibrationRejectCount atomic.Uint64
}

func (m *ClientMetrics) incLineRecvCount() {
	m.LineRecvCount.Add(1)
}

func (m *ClientMetrics) incLineSendCount() {
	m.LineSendCount.Add(1)
}

func (m *ClientMetrics) incAckCount() {
	m.AckCount.Add(1)
}

func (m *ClientMetrics) incAckSkipCount() {
	m.AckSkipCount.Add(1)
}

func (m *ClientMetrics) incSampleCount() {
	m.SampleCount.Add(1)
}

func (m *ClientMetrics) incNonSampleCount() {
	m.NonSampleCount.Add(1)
}

func (m *ClientMetrics) incSampleErrCount() {
	m.SampleErrCount.Add(1)
}

func (m *ClientMetrics) incCalibrationAttemptCount() {
	m.CalibrationAttemptCount.Add(1)
}

func (m *ClientMetrics) incCalibrationRejectCount() {
	m.CalibrationRejectCount.Add(1)
}
