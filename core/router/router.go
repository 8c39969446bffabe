// Package router registers typed handlers on an http.ServeMux.
//
// Patterns use the net/http syntax ("/customer/bookings/{id}", "/{$}").
// Middleware added with Use applies to routes registered after the call;
// With and Group derive a router whose routes get extra middleware.
package router

import (
	"net/http"

	"github.com/dmitrymomot/evservice/core/handler"
)

// Router is the routing surface used by the portal.
type Router[C handler.Context] interface {
	http.Handler

	Get(pattern string, h handler.HandlerFunc[C])
	Post(pattern string, h handler.HandlerFunc[C])
	Method(method, pattern string, h handler.HandlerFunc[C])
	// Handle registers h for every method.
	Handle(pattern string, h handler.HandlerFunc[C])

	Use(middlewares ...handler.Middleware[C])
	With(middlewares ...handler.Middleware[C]) Router[C]
	Group(fn func(r Router[C])) Router[C]

	Routes() []Route
}

// Route describes a registered route.
type Route struct {
	Method  string
	Pattern string
}

// ContextFactory builds the request context for every request.
type ContextFactory[C handler.Context] func(w http.ResponseWriter, r *http.Request) C

// New creates a Router. newContext is required.
func New[C handler.Context](newContext ContextFactory[C], opts ...Option[C]) Router[C] {
	if newContext == nil {
		panic(ErrNoContextFactory)
	}
	return newMux(newContext, opts...)
}
