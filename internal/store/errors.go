package store

import "errors"

var (
	// ErrSessionRunning means a start was attempted while a session is open.
	// Callers are expected to stop the running session first.
	ErrSessionRunning = errors.New("a session is already running")

	// ErrNotFound means the referenced id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClosed means a stop was attempted on a closed session.
	ErrAlreadyClosed = errors.New("session already closed")

	// ErrInvalidRange means an edit would put end_at before start_at.
	ErrInvalidRange = errors.New("session end before start")
)
