package domain

import "errors"

var (
	// ErrAuthRejected means the upstream declined the token
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrStreamIO means the stream was closed or timed out
	ErrStreamIO = errors.New("stream i/o failure")

	// ErrInvalidConfig means a registration was missing its token or name
	ErrInvalidConfig = errors.New("invalid account configuration")

	// ErrSessionNotFound means no live session exists for the key
	ErrSessionNotFound = errors.New("session not found")

	// ErrAccountNotFound means no persisted account exists for the key
	ErrAccountNotFound = errors.New("account not found")
)
