package opengaze

import (
	"errors"
	"strconv"
	"strings"
)

// Field names of data and summary lines.
const (
	FieldBestValid    = "BPOGV"
	FieldBestX        = "BPOGX"
	FieldBestY        = "BPOGY"
	FieldLeftValid    = "LEYEV"
	FieldRightValid   = "REYEV"
	FieldAverageError = "AVE_ERROR"
	FieldValidPoints  = "VALID_POINTS"
)

var errUnterminated = errors.New("unterminated value")

// DecodeEyeValidity extracts the LEYEV and REYEV fields of line.
//
// A field the line doesn't carry is reported as FlagMissing. A field that is present but
// malformed is also reported as FlagMissing and the returned error is a *FormatError for it;
// the other side is still decoded.
func DecodeEyeValidity(line string) (EyeValidity, error) {
	var (
		v    EyeValidity
		errs []error
	)

	left, err := lookupFlag(line, FieldLeftValid)
	if err != nil {
		errs = append(errs, err)
	}
	v.Left = left

	right, err := lookupFlag(line, FieldRightValid)
	if err != nil {
		errs = append(errs, err)
	}
	v.Right = right

	return v, errors.Join(errs...)
}

// DecodeGazeSample decodes a streamed data line.
//
// ok is false and err is nil when line has no BPOGV field: it is not a gaze sample and should
// be ignored. When BPOGV is present, BPOGX, BPOGY, LEYEV and REYEV must all be present and
// well-formed; otherwise ok is false and err is a *FormatError naming the first bad field.
func DecodeGazeSample(line string) (sample GazeSample, ok bool, err error) {
	if _, found, _ := lookup(line, FieldBestValid); !found {
		return GazeSample{}, false, nil
	}

	if sample.BestValid, err = requireFlag(line, FieldBestValid); err != nil {
		return GazeSample{}, false, err
	}
	if sample.BestX, err = requireDecimal(line, FieldBestX); err != nil {
		return GazeSample{}, false, err
	}
	if sample.BestY, err = requireDecimal(line, FieldBestY); err != nil {
		return GazeSample{}, false, err
	}
	if sample.LeftEyeOK, err = requireFlag(line, FieldLeftValid); err != nil {
		return GazeSample{}, false, err
	}
	if sample.RightEyeOK, err = requireFlag(line, FieldRightValid); err != nil {
		return GazeSample{}, false, err
	}

	return sample, true, nil
}

// DecodeCalibrationOutcome decodes the reply to GET CALIBRATE_RESULT_SUMMARY, e.g.
//
//	<ACK ID="CALIBRATE_RESULT_SUMMARY" AVE_ERROR="18.35" VALID_POINTS="9" />
func DecodeCalibrationOutcome(summaryLine string) (CalibrationOutcome, error) {
	aveErr, err := requireDecimal(summaryLine, FieldAverageError)
	if err != nil {
		return CalibrationOutcome{}, err
	}

	points, err := requireUnsigned(summaryLine, FieldValidPoints)
	if err != nil {
		return CalibrationOutcome{}, err
	}

	return CalibrationOutcome{AverageError: aveErr, ValidPointCount: points}, nil
}

// lookup returns the quoted value of key in line.
//
// Keys only match at an attribute boundary, so "LEYEV" is never found inside "XLEYEV".
// found is true when KEY=" occurs; err is set when the value has no closing quote.
func lookup(line, key string) (val string, found bool, err error) {
	needle := key + `="`
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], needle)
		if i < 0 {
			return "", false, nil
		}
		i += off

		if i > 0 && !isBoundary(line[i-1]) {
			off = i + 1
			continue
		}

		start := i + len(needle)
		end := strings.IndexByte(line[start:], '"')
		if end < 0 {
			return "", true, errUnterminated
		}

		return line[start : start+end], true, nil
	}

	return "", false, nil
}

func isBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '<'
}

func lookupFlag(line, key string) (Flag, error) {
	val, found, err := lookup(line, key)
	if !found {
		return FlagMissing, nil
	}
	if err != nil {
		return FlagMissing, malformedField(key, line, err)
	}

	b, err := parseFlag(val)
	if err != nil {
		return FlagMissing, malformedField(key, line, err)
	}

	return toFlag(b), nil
}

func requireValue(line, key string) (string, error) {
	val, found, err := lookup(line, key)
	if !found {
		return "", missingField(key, line)
	}
	if err != nil {
		return "", malformedField(key, line, err)
	}

	return val, nil
}

func requireFlag(line, key string) (bool, error) {
	val, err := requireValue(line, key)
	if err != nil {
		return false, err
	}

	b, err := parseFlag(val)
	if err != nil {
		return false, malformedField(key, line, err)
	}

	return b, nil
}

func requireDecimal(line, key string) (float64, error) {
	val, err := requireValue(line, key)
	if err != nil {
		return 0, err
	}

	f, err := parseDecimal(val)
	if err != nil {
		return 0, malformedField(key, line, err)
	}

	return f, nil
}

func requireUnsigned(line, key string) (int, error) {
	val, err := requireValue(line, key)
	if err != nil {
		return 0, err
	}

	n, err := parseUnsigned(val)
	if err != nil {
		return 0, malformedField(key, line, err)
	}

	return n, nil
}

// parseFlag accepts an unsigned integer; only "1" means set.
func parseFlag(s string) (bool, error) {
	if _, err := parseUnsigned(s); err != nil {
		return false, err
	}

	return s == "1", nil
}

// parseDecimal accepts -?[0-9]+(\.[0-9]+)?.
func parseDecimal(s string) (float64, error) {
	digits := strings.TrimPrefix(s, "-")
	intPart, fracPart, hasDot := strings.Cut(digits, ".")
	if !allDigits(intPart) || (hasDot && !allDigits(fracPart)) {
		return 0, strconv.ErrSyntax
	}

	return strconv.ParseFloat(s, 64)
}

// parseUnsigned accepts [0-9]+ within the int range.
func parseUnsigned(s string) (int, error) {
	if !allDigits(s) {
		return 0, strconv.ErrSyntax
	}

	return strconv.Atoi(s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
