package domain

import "errors"

var (
	// ErrInitialization is returned when the map provider rejects bootstrap
	// (network or auth failure). The session stays Uninitialized.
	ErrInitialization = errors.New("map provider initialization failed")

	// ErrPrecondition is returned when an operation needs a live surface
	// that does not exist yet.
	ErrPrecondition = errors.New("map surface is not ready")

	// ErrInitInProgress is returned to a second Init while the first one is
	// still waiting on the provider.
	ErrInitInProgress = errors.New("map session initialization already in progress")

	// ErrAlreadyInitialized is returned by Init on a Ready session.
	ErrAlreadyInitialized = errors.New("map session already initialized")

	ErrSessionNotFound  = errors.New("map session not found")
	ErrInvalidPoint     = errors.New("invalid geographic point")
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrUnsupported is returned when a surface cannot perform a view change
	// requested through the API (e.g. panning a browser-driven surface).
	ErrUnsupported = errors.New("operation not supported by this surface")
)
