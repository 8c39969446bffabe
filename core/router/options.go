package router

import (
	"errors"
	"log/slog"

	"github.com/dmitrymomot/evservice/core/handler"
)

var ErrNoContextFactory = errors.New("router: context factory is required")

// Option configures a Router.
type Option[C handler.Context] func(*shared[C])

// WithErrorHandler replaces the default plain-text error handler.
func WithErrorHandler[C handler.Context](h handler.ErrorHandler[C]) Option[C] {
	return func(s *shared[C]) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// WithLogger sets the logger used for panics and late errors.
func WithLogger[C handler.Context](l *slog.Logger) Option[C] {
	return func(s *shared[C]) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotFound sets the handler for unmatched paths.
func WithNotFound[C handler.Context](h handler.HandlerFunc[C]) Option[C] {
	return func(s *shared[C]) {
		if h != nil {
			s.notFound = h
		}
	}
}
