package authapi

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Client unwraps to exactly one of them.
var (
	// ErrInvalidCredentials covers rejected credentials, OTP codes and form input.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork covers transport failures and cancelled requests.
	ErrNetwork = errors.New("network error")
	// ErrServer covers 5xx responses, unexpected statuses and undecodable bodies.
	ErrServer = errors.New("server error")
)

// Error carries the kind plus whatever the backend said about it.
type Error struct {
	Kind    error
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("authapi: %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns a user-facing description of err.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrNetwork):
		return "Cannot reach the service. Check your connection and try again."
	default:
		return "The service is temporarily unavailable. Please try again later."
	}
}
