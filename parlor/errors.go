package parlor

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// ErrorInvalidInput means a required field (room name, room ID,
	// username) was empty or malformed.
	ErrorInvalidInput

	// ErrorServer means the room directory rejected a request; the message
	// carries the server-reported reason.
	ErrorServer

	// ErrorTransport means a connect or send failed at the transport layer.
	ErrorTransport

	// ErrorConnectionFailed means the pre-session health probe exhausted
	// its retries.
	ErrorConnectionFailed

	// ErrorNotConnected means a send was attempted without a live
	// connection.
	ErrorNotConnected
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorInvalidInput:
		return "invalid_input"
	case ErrorServer:
		return "server_error"
	case ErrorTransport:
		return "transport_error"
	case ErrorConnectionFailed:
		return "connection_failed"
	case ErrorNotConnected:
		return "not_connected"
	default:
		return fmt.Sprintf("unknown_code_%d", int(e))
	}
}

// ClientError is a structured error with code and context.
type ClientError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ClientError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is comparison by code.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ClientError with the given code and message.
func NewError(code ErrorCode, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// WrapError wraps an existing error with a ClientError.
func WrapError(code ErrorCode, message string, err error) *ClientError {
	return &ClientError{Code: code, Message: message, Wrapped: err}
}

// HasCode reports whether err is (or wraps) a ClientError with the code.
func HasCode(err error, code ErrorCode) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}
