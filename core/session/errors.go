package session

import "errors"

var (
	// ErrCorruptRecord is logged when the persisted pair cannot be decoded or
	// only half of it exists. It is never returned to callers of Hydrate.
	ErrCorruptRecord = errors.New("session: corrupt persisted record")
	// ErrTokenExpired is logged when the persisted token is a JWT past its exp.
	ErrTokenExpired = errors.New("session: persisted token expired")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrSessionChanged is returned by Refresh when a concurrent login or
	// logout replaced the session it started from.
	ErrSessionChanged = errors.New("session: changed during refresh")
	// ErrPersist wraps durable storage write failures.
	ErrPersist = errors.New("session: failed to persist")
	// ErrIncomplete is returned when the gateway reports success without a
	// usable identity or token.
	ErrIncomplete = errors.New("session: gateway returned incomplete session")
)
