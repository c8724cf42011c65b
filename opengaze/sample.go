package opengaze

import "fmt"

// GazeSample is one decoded point-of-gaze reading with per-eye validity.
//
// BestX and BestY are the tracker's "best" point of gaze as a fraction of the screen.
type GazeSample struct {
	BestValid  bool
	BestX      float64
	BestY      float64
	LeftEyeOK  bool
	RightEyeOK bool
}

func (s GazeSample) String() string {
	return fmt.Sprintf("GazeSample[bestValid=%t, bestX=%g, bestY=%g, leftEyeOK=%t, rightEyeOK=%t]",
		s.BestValid, s.BestX, s.BestY, s.LeftEyeOK, s.RightEyeOK)
}

// CalibrationOutcome holds the summary statistics of one calibration run.
type CalibrationOutcome struct {
	// AverageError is the mean calibration error in pixels.
	AverageError float64
	// ValidPointCount is the number of calibration points the tracker accepted.
	ValidPointCount int
}

// Flag is a boolean protocol field that may be missing from a line.
type Flag uint8

const (
	// FlagMissing means the line doesn't carry the field.
	FlagMissing Flag = iota
	// FlagFalse means the field is present with value "0".
	FlagFalse
	// FlagTrue means the field is present with value "1".
	FlagTrue
)

// Present reports whether the field was on the line.
func (f Flag) Present() bool { return f != FlagMissing }

// True reports whether the field was present and set.
func (f Flag) True() bool { return f == FlagTrue }

func (f Flag) String() string {
	switch f {
	case FlagFalse:
		return "0"
	case FlagTrue:
		return "1"
	default:
		return "missing"
	}
}

func toFlag(b bool) Flag {
	if b {
		return FlagTrue
	}

	return FlagFalse
}

// EyeValidity carries the LEYEV/REYEV fields of a data line. Either side may be missing
// independently of the other.
type EyeValidity struct {
	Left  Flag
	Right Flag
}
