package session

import "errors"

var (
	// ErrInitialization indicates an adapter could not be constructed at
	// session start (e.g. missing credential). Fatal to session start;
	// the caller must not proceed to accept audio.
	ErrInitialization = errors.New("session initialization failed")

	// ErrDuplicateSession indicates a registry create collision. Should
	// not occur under correct identifier generation but is reported, not
	// silently overwritten.
	ErrDuplicateSession = errors.New("conversation already active")

	// ErrSessionNotFound indicates a registry miss on lookup/terminate
	ErrSessionNotFound = errors.New("conversation not found")

	// ErrMaxSessions indicates the process-wide session cap is reached
	ErrMaxSessions = errors.New("maximum sessions reached")
)
