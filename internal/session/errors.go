package session

import "errors"

var (
	// ErrTransport means the connection failed; the session cannot be used afterwards
	ErrTransport = errors.New("transport error")

	// ErrTimeout means no response arrived within the configured response timeout
	ErrTimeout = errors.New("response timeout")

	// ErrClosed is returned for requests on a closed session
	ErrClosed = errors.New("session closed")

	// ErrInvalidRequest is returned for requests that cannot be encoded
	ErrInvalidRequest = errors.New("invalid request")
)
