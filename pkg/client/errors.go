package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientClosed is returned by every operation invoked after Close. Using
// a closed client is a programming error; it fails immediately rather than
// touching the connection.
var ErrClientClosed = errors.New("nitrogen: client is closed")

// ConnectionSetupError reports that the channel to the model server could
// not be constructed. The attempt is not retried.
type ConnectionSetupError struct {
	Addr string
	Err  error
}

func (e *ConnectionSetupError) Error() string {
	return fmt.Sprintf("nitrogen: connect to model server at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionSetupError) Unwrap() error { return e.Err }

// TimeoutError reports that no reply arrived within the configured bound.
// Timeout is the bound that elapsed, not the time actually waited.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("nitrogen: model server did not reply within %s; ensure the serving process is running", e.Timeout)
}

// ServerError reports that the model server answered with an error status.
// Message is the server's text verbatim, or "Unknown error" when the server
// supplied none.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("nitrogen: server error: %s", e.Message)
}

// MalformedResponseError reports that the reply bytes did not deserialize
// into a response envelope. This is a protocol violation, not a recoverable
// condition.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("nitrogen: malformed response from model server: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
