package protocolerrors

import "github.com/pkg/errors"

// ProtocolError is an error that signifies a violation of the peer
// protocol: a response over its size limit, or data that does not parse.
type ProtocolError struct {
	ShouldBlacklist bool
	Cause           error
}

func (e *ProtocolError) Error() string {
	return e.Cause.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error.
// Errorf also records the stack trace at the point it was called.
func Errorf(shouldBlacklist bool, format string, args ...interface{}) error {
	return &ProtocolError{
		ShouldBlacklist: shouldBlacklist,
		Cause:           errors.Errorf(format, args...),
	}
}

// New returns an error with the supplied message.
// New also records the stack trace at the point it was called.
func New(shouldBlacklist bool, message string) error {
	return &ProtocolError{
		ShouldBlacklist: shouldBlacklist,
		Cause:           errors.New(message),
	}
}

// Wrap returns an error annotating err with a stack trace
// at the point Wrap is called, and the supplied message.
func Wrap(shouldBlacklist bool, err error, message string) error {
	return &ProtocolError{
		ShouldBlacklist: shouldBlacklist,
		Cause:           errors.Wrap(err, message),
	}
}

// Wrapf returns an error annotating err with a stack trace
// at the point Wrapf is called, and the format specifier.
func Wrapf(shouldBlacklist bool, err error, format string, args ...interface{}) error {
	return &ProtocolError{
		ShouldBlacklist: shouldBlacklist,
		Cause:           errors.Wrapf(err, format, args...),
	}
}

// ShouldBlacklist returns whether err is, or wraps, a ProtocolError that
// calls for blacklisting the peer that caused it.
func ShouldBlacklist(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr) && protocolErr.ShouldBlacklist
}
