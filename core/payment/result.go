package payment

import (
	"encoding/json"
	"fmt"
)

// Status is the reconciliation state.
type Status uint8

const (
	Processing Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Processing:
		return "processing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Confirmation is what the backend returns about a verified payment.
type Confirmation struct {
	Message       string      `json:"message,omitempty"`
	OrderID       string      `json:"orderId,omitempty"`
	TransactionNo string      `json:"transactionNo,omitempty"`
	Amount        json.Number `json:"amount,omitempty"`
	BankCode      string      `json:"bankCode,omitempty"`
	PayDate       string      `json:"payDate,omitempty"`
}

// Result is the tagged reconciliation outcome. Confirmation is meaningful only
// when Succeeded, Reason only when Failed.
type Result struct {
	Status       Status
	Confirmation Confirmation
	Reason       string
}

// NewResult returns a Processing result.
func NewResult() Result {
	return Result{Status: Processing}
}

// Succeed moves a Processing result to Succeeded.
func (r Result) Succeed(c Confirmation) (Result, error) {
	if r.Status != Processing {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, Succeeded)
	}
	return Result{Status: Succeeded, Confirmation: c}, nil
}

// Fail moves a Processing result to Failed.
func (r Result) Fail(reason string) (Result, error) {
	if r.Status != Processing {
		return r, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, Failed)
	}
	return Result{Status: Failed, Reason: reason}, nil
}
