// Package failure defines the error kinds shared by the message value model.
//
// Every error returned by the shape-message packages carries exactly one of
// the kinds below as a marker, so callers can classify failures with
// errors.Is regardless of the concrete message:
//
//	if errors.Is(err, failure.ErrInvalidArgument) { ... }
//
// Invalid-argument errors are raised before any I/O takes place. Operation
// failures are raised at the I/O boundary (detached stream, capability
// mismatch, failing handle). Parser contract violations are operation
// failures raised when a registered body parser returns a value of a
// disallowed shape.
package failure

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument marks caller contract violations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOperation marks failures detected while operating on a resource.
	ErrOperation = errors.New("operation failed")

	// ErrParserContract marks a body parser that returned a disallowed value.
	ErrParserContract = errors.Mark(errors.New("body parser contract violated"), ErrOperation)
)

// InvalidArgument returns a formatted error marked as ErrInvalidArgument.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrInvalidArgument)
}

// Operation returns a formatted error marked as ErrOperation.
func Operation(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrOperation)
}

// ParserContract returns a formatted error marked as both ErrParserContract
// and ErrOperation.
func ParserContract(format string, args ...interface{}) error {
	err := errors.NewWithDepthf(1, format, args...)
	return errors.Mark(errors.Mark(err, ErrParserContract), ErrOperation)
}

// Kind marks err with each of the given reference errors. It returns nil
// when err is nil.
func Kind(err error, refs ...error) error {
	if err == nil {
		return nil
	}
	for _, ref := range refs {
		err = errors.Mark(err, ref)
	}
	return err
}

// IsInvalidArgument reports whether err is a caller contract violation.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsOperation reports whether err is an operation failure. Parser contract
// violations are operation failures as well.
func IsOperation(err error) bool {
	return errors.Is(err, ErrOperation)
}
