package opengaze

import "strings"

// Option identifiers used by the tracker client.
const (
	OptEnableSendData         = "ENABLE_SEND_DATA"
	OptEnableSendPOGBest      = "ENABLE_SEND_POG_BEST"
	OptEnableSendEyeLeft      = "ENABLE_SEND_EYE_LEFT"
	OptEnableSendEyeRight     = "ENABLE_SEND_EYE_RIGHT"
	OptTrackerDisplay         = "TRACKER_DISPLAY"
	OptCalibrateShow          = "CALIBRATE_SHOW"
	OptCalibrateStart         = "CALIBRATE_START"
	OptCalibrateResultSummary = "CALIBRATE_RESULT_SUMMARY"
)

const calibrationResultMarker = `ID="CALIB_RESULT"`

// Flag values for SET commands.
const (
	On  = "1"
	Off = "0"
)

// EncodeSet returns the SET command line for option, e.g. <SET ID="ENABLE_SEND_DATA" STATE="1" />.
func EncodeSet(option, value string) string {
	return `<SET ID="` + option + `" STATE="` + value + `" />`
}

// EncodeGet returns the GET command line for option, e.g. <GET ID="CALIBRATE_RESULT_SUMMARY" />.
func EncodeGet(option string) string {
	return `<GET ID="` + option + `" />`
}

// EncodeAck returns the acknowledgment line a tracker sends for a SET of option.
// Client code never sends it; simulators and tests do.
func EncodeAck(option, value string) string {
	return `<ACK ID="` + option + `" STATE="` + value + `" />`
}

// IsAck reports whether line acknowledges option.
//
// The closing quote is part of the match, so an acknowledgment for "OPT2" is never taken
// for one of "OPT". Trailing attributes on the ACK line are ignored.
func IsAck(line, option string) bool {
	return strings.Contains(line, `<ACK ID="`+option+`"`)
}

// IsCalibrationResult reports whether line is the calibration-finished marker.
// Per-point lines (ID="CALIB_RESULT_PT") don't match.
func IsCalibrationResult(line string) bool {
	return strings.Contains(line, calibrationResultMarker)
}
