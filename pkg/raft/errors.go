package raft

import "fmt"

// ErrorKind classifies a protocol-level failure (spec §7). Kinds, not
// Go types, are what callers switch on.
type ErrorKind string

const (
	ErrNoLeader            ErrorKind = "NO_LEADER"
	ErrIllegalMemberState  ErrorKind = "ILLEGAL_MEMBER_STATE"
	ErrUnknownSession      ErrorKind = "UNKNOWN_SESSION"
	ErrUnknownStateMachine ErrorKind = "UNKNOWN_STATE_MACHINE"
	ErrCommandFailure      ErrorKind = "COMMAND_FAILURE"
	ErrQueryFailure        ErrorKind = "QUERY_FAILURE"
	ErrApplicationError    ErrorKind = "APPLICATION_ERROR"
	ErrProtocolError       ErrorKind = "PROTOCOL_ERROR"
	ErrConfigurationError  ErrorKind = "CONFIGURATION_ERROR"
)

// Error is the error type returned across the raft package. It carries
// an ErrorKind so callers can branch with errors.As instead of string
// matching.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, defaulting to
// ErrApplicationError for errors not produced by this package.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if re, ok := err.(*Error); ok {
		return re.Kind
	}
	return ErrApplicationError
}
