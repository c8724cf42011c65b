package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNil indicates that a nil ClientConfig was provided.
	ErrConfigNil = errors.New("client config is nil")

	// ErrListenerNil indicates that StartData was called without a sample listener.
	ErrListenerNil = errors.New("sample listener is nil")

	// ErrNotConnected indicates that an operation requires a live tracker connection.
	ErrNotConnected = errors.New("tracker is not connected")

	// ErrInvalidTransition is returned when a connection state change isn't allowed
	// from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCalibrationAborted indicates that the calibration attempt hook stopped the retry loop.
	ErrCalibrationAborted = errors.New("calibration aborted")
)

var (
	// ErrChannelClosed indicates that the line channel was closed locally.
	ErrChannelClosed = errors.New("line channel closed")

	// ErrEndOfStream indicates that the tracker closed the connection.
	ErrEndOfStream = errors.New("end of stream")

	// ErrConcurrentReceive indicates a second ReceiveLine call while one is in flight.
	ErrConcurrentReceive = errors.New("concurrent receive on line channel")
)

// ConnectError reports a network failure while opening the line channel.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to tracker %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports a failed SendLine.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "write to tracker: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a failed ReceiveLine other than the peer closing the connection.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read from tracker: " + e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }

// isChannelError reports whether err means the session is no longer usable.
func isChannelError(err error) bool {
	var (
		we *WriteError
		re *ReadError
	)

	return errors.As(err, &we) || errors.As(err, &re) || errors.Is(err, ErrEndOfStream)
}
