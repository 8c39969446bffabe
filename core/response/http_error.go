package response

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/evservice/core/handler"
)

// HTTPError is an error with an HTTP status and a message safe to show.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError; an empty message uses the status text.
func NewHTTPError(status int, message string, cause error) HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return HTTPError{Status: status, Message: message, Err: cause}
}

func (e HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e HTTPError) Unwrap() error { return e.Err }

func (e HTTPError) StatusCode() int { return e.Status }

var (
	ErrNotFound            = NewHTTPError(http.StatusNotFound, "", nil)
	ErrMethodNotAllowed    = NewHTTPError(http.StatusMethodNotAllowed, "", nil)
	ErrBadRequest          = NewHTTPError(http.StatusBadRequest, "", nil)
	ErrInternalServerError = NewHTTPError(http.StatusInternalServerError, "", nil)
)

// AsHTTPError converts any error to an HTTPError, defaulting to 500.
func AsHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return NewHTTPError(sc.StatusCode(), "", err)
	}
	return NewHTTPError(http.StatusInternalServerError, "", err)
}

// ErrorHandler renders err as plain text with its status. Internal details
// are never written to the client.
func ErrorHandler[C handler.Context](ctx C, err error) {
	httpErr := AsHTTPError(err)
	Render(ctx, Text(httpErr.Message, httpErr.Status))
}
