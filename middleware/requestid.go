package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/response"
)

const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID assigns every request an id, reusing a well-formed incoming
// X-Request-ID, and echoes it in the response.
func RequestID[C handler.Context]() handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			id := ctx.Request().Header.Get(HeaderRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			ctx.SetValue(requestIDKey{}, id)
			ctx.ResponseWriter().Header().Set(HeaderRequestID, id)
			return next(ctx)
		}
	}
}

// GetRequestID returns the id stored by RequestID.
func GetRequestID(ctx interface{ Value(any) any }) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// statusWriter records the status code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// code is the recorded status or, when nothing was written, the status the
// error handler will render for err.
func (w *statusWriter) code(err error) int {
	switch {
	case w.status != 0:
		return w.status
	case err != nil:
		return response.AsHTTPError(err).Status
	default:
		return http.StatusOK
	}
}
