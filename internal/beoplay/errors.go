package beoplay

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrSkipped is returned without touching the network while the client
	// is cooling down after a transport failure.
	ErrSkipped = errors.New("request skipped while device is unreachable")
	// ErrInvalidArgument rejects a command before anything is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedBody means the device answered 2xx with a body that does not
	// match the expected shape.
	ErrMalformedBody = errors.New("malformed response body")
	// ErrAlreadyListening is returned by Listen when a stream is already open
	// on this client.
	ErrAlreadyListening = errors.New("notification stream already open")
)

// TransportError reports that the device could not be reached or the
// connection failed mid-request. It is the only error that arms the cooldown.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StatusError is a non-2xx answer from the device.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Unreachable reports whether err means the device was not talked to at all,
// either because of a transport failure or because the cooldown skipped it.
func Unreachable(err error) bool {
	var te *TransportError
	return errors.Is(err, ErrSkipped) || errors.As(err, &te)
}

func outcome(err error) string {
	var (
		te *TransportError
		se *StatusError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSkipped):
		return "skipped"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, ErrMalformedBody):
		return "malformed"
	default:
		return "error"
	}
}
