package session

import "errors"

var (
	// ErrSessionClosed is returned by operations on a stopped session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNotStarted is returned by Write before Start.
	ErrNotStarted = errors.New("session not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrManagerClosed is returned when creating a session on a closed manager.
	ErrManagerClosed = errors.New("session manager is closed")
)
