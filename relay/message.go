package relay

import (
	"encoding/json"

	"github.com/inttech/go-gazetrack/opengaze"
)

// Event names of the messages a hub sends besides samples.
const (
	EventState      = "state"
	EventCalibrated = "calibrated"
	EventError      = "error"
)

type sampleMessage struct {
	BestValid  bool    `json:"bestValid"`
	BestX      float64 `json:"bestX"`
	BestY      float64 `json:"bestY"`
	LeftEyeOK  bool    `json:"leftEyeOK"`
	RightEyeOK bool    `json:"rightEyeOK"`
}

type stateMessage struct {
	Event string `json:"event"`
	State string `json:"state"`
}

type calibratedMessage struct {
	Event        string  `json:"event"`
	AverageError float64 `json:"averageError"`
	ValidPoints  int     `json:"validPoints"`
}

type errorMessage struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

func encodeSample(s opengaze.GazeSample) ([]byte, error) {
	return json.Marshal(sampleMessage{
		BestValid:  s.BestValid,
		BestX:      s.BestX,
		BestY:      s.BestY,
		LeftEyeOK:  s.LeftEyeOK,
		RightEyeOK: s.RightEyeOK,
	})
}

func encodeState(state string) ([]byte, error) {
	return json.Marshal(stateMessage{Event: EventState, State: state})
}

func encodeCalibrated(outcome opengaze.CalibrationOutcome) ([]byte, error) {
	return json.Marshal(calibratedMessage{
		Event:        EventCalibrated,
		AverageError: outcome.AverageError,
		ValidPoints:  outcome.ValidPointCount,
	})
}

func encodeError(err error) ([]byte, error) {
	return json.Marshal(errorMessage{Event: EventError, Error: err.Error()})
}
