package session

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when using a closed transport.
	ErrClosed = errors.New("session: transport closed")

	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("session: transport already started")

	// ErrServerClosed is the close cause when the server ends the session.
	ErrServerClosed = errors.New("session: closed by server")

	// ErrReconnectExhausted is returned when reconnection gives up.
	ErrReconnectExhausted = errors.New("session: reconnection attempts exhausted")

	// ErrHeartbeatTimeout reports a connection that stopped answering.
	ErrHeartbeatTimeout = errors.New("session: heartbeat timeout")
)

// TransportError reports a failed network operation.
type TransportError struct {
	Op  string // "dial", "hello", "read", "write", "heartbeat"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
