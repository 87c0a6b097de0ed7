package services

import "errors"

// Error kinds surfaced across the service boundary. Handlers map these to
// HTTP statuses; anything else is an internal error.
var (
	// ErrNotFound covers absent rooms and songs, including rooms that have
	// closed and are no longer resolvable by code.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means an authenticated identity does not own the entity
	// it is trying to mutate.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized means the caller presented no usable credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition means an illegal status change, or a vote on a
	// terminal (played/rejected) song.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrCapacityExhausted means no free room code remains.
	ErrCapacityExhausted = errors.New("room capacity exhausted")

	// ErrUpstreamUnavailable means an external collaborator (catalog search)
	// could not be reached or answered abnormally.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidCredentials means a failed host login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyRegistered means the host email is taken.
	ErrAlreadyRegistered = errors.New("already registered")
)
