package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("payment: invalid status transition")
	ErrNoPendingBooking  = errors.New("payment: no pending booking")
	ErrInvalidRequest    = errors.New("payment: invalid payment request")
)

// Verification error kinds.
var (
	ErrGatewayRejected   = errors.New("payment rejected")
	ErrNetwork           = errors.New("payment verification network error")
	ErrMalformedResponse = errors.New("malformed verification response")
)

// VerificationError unwraps to one of the verification kinds.
type VerificationError struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *VerificationError) Error() string {
	msg := "payment: " + e.Kind.Error()
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

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason turns a verification error into text for the return page.
func Reason(err error) string {
	var verr *VerificationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGatewayRejected):
		return "The payment was not completed."
	case errors.Is(err, ErrNetwork):
		return "We could not confirm the payment with the server. Please check your bookings later."
	default:
		return "The payment confirmation could not be read."
	}
}
