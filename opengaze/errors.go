package opengaze

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldMissing indicates that a line lacks a field the decoder requires.
	ErrFieldMissing = errors.New("field missing")

	// ErrFieldMalformed indicates that a field is present but its value can't be parsed.
	ErrFieldMalformed = errors.New("field malformed")
)

// FormatError reports a line that was expected to carry a specific field but doesn't,
// or carries it in a malformed shape.
type FormatError struct {
	// Field is the protocol field name, e.g. "AVE_ERROR".
	Field string
	// Line is the offending line.
	Line string
	// Err is ErrFieldMissing or ErrFieldMalformed, possibly wrapping a parse error.
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("opengaze: %s %s in line %q", e.Field, e.Err, e.Line)
}

func (e *FormatError) Unwrap() error { return e.Err }

func missingField(field, line string) *FormatError {
	return &FormatError{Field: field, Line: line, Err: ErrFieldMissing}
}

func malformedField(field, line string, cause error) *FormatError {
	err := ErrFieldMalformed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrFieldMalformed, cause)
	}

	return &FormatError{Field: field, Line: line, Err: err}
}
