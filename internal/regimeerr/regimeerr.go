// Package regimeerr defines the error taxonomy shared across the engine.
//
// Every recoverable operation in the engine returns a plain (T, error) pair;
// errors that need a caller-branchable tag wrap a *regimeerr.Error instead of
// a bespoke sum type. Use errors.As to recover the Code.
package regimeerr

import "fmt"

// Code classifies an error so callers can branch on it without string
// matching.
type Code int

const (
	Unknown Code = iota
	InvalidArgument
	NotFound
	AlreadyExists
	OutOfRange
	InvalidState
	IoError
	ParseError
	ConfigError
	BrokerError
	NetworkError
	TimeoutError
	InternalError
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case OutOfRange:
		return "OutOfRange"
	case InvalidState:
		return "InvalidState"
	case IoError:
		return "IoError"
	case ParseError:
		return "ParseError"
	case ConfigError:
		return "ConfigError"
	case BrokerError:
		return "BrokerError"
	case NetworkError:
		return "NetworkError"
	case TimeoutError:
		return "TimeoutError"
	case InternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Code, a message, and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same Code, so errors.Is(err, regimeerr.New(NotFound, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
