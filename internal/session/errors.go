package session

import "errors"

var (
	// ErrTransport wraps connection-level failures: dial errors, broken
	// pipes, protocol resets. Callers match with errors.Is.
	ErrTransport = errors.New("session: transport failure")

	// ErrClosed is returned from commands issued after Close.
	ErrClosed = errors.New("session: client closed")

	// ErrCodeRejected means the TV declined the pairing code.
	ErrCodeRejected = errors.New("session: pairing code rejected")

	// ErrNoCredentials means pairing completed without yielding
	// certificate material.
	ErrNoCredentials = errors.New("session: no credentials issued")
)
