// Package handler defines the typed handler contract shared by the router,
// the response helpers and the middleware.
//
// A handler receives a request context C and returns a Response. Rendering is
// deferred until the router executes the Response, so middleware can wrap or
// replace it, and any rendering error reaches a single ErrorHandler.
package handler

import (
	"context"
	"net/http"
)

// Response writes an HTTP response. A returned error is passed to the
// router's ErrorHandler if nothing has been written yet.
type Response func(w http.ResponseWriter, r *http.Request) error

// HandlerFunc handles a request with a typed context.
type HandlerFunc[C Context] func(ctx C) Response

// ErrorHandler renders an error produced while handling a request.
type ErrorHandler[C Context] func(ctx C, err error)

// Middleware wraps a HandlerFunc.
type Middleware[C Context] func(next HandlerFunc[C]) HandlerFunc[C]

// Context is the request context contract.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	Param(key string) string
	SetValue(key, val any)
}

// Chain applies middlewares so that the first one is outermost.
func Chain[C Context](h HandlerFunc[C], middlewares ...Middleware[C]) HandlerFunc[C] {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
