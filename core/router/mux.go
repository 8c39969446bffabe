package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/response"
)

// shared is the state common to a router and everything derived from it.
type shared[C handler.Context] struct {
	mux          *http.ServeMux
	newContext   ContextFactory[C]
	errorHandler handler.ErrorHandler[C]
	notFound     handler.HandlerFunc[C]
	logger       *slog.Logger

	mu     sync.Mutex
	routes []Route

	fallback sync.Once
	root     *mux[C]
}

type mux[C handler.Context] struct {
	*shared[C]
	middlewares []handler.Middleware[C]
}

func newMux[C handler.Context](newContext ContextFactory[C], opts ...Option[C]) *mux[C] {
	s := &shared[C]{
		mux:          http.NewServeMux(),
		newContext:   newContext,
		errorHandler: response.ErrorHandler[C],
		logger:       logger.Discard(),
	}
	s.notFound = func(C) handler.Response { return response.Error(response.ErrNotFound) }
	for _, opt := range opts {
		opt(s)
	}
	m := &mux[C]{shared: s}
	s.root = m
	return m
}

func (m *mux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The catch-all is registered on first use so it picks up root middleware.
	m.fallback.Do(func() {
		m.mux.Handle("/", m.root.serve(handler.Chain(m.notFound, m.root.middlewares...)))
	})
	m.mux.ServeHTTP(w, r)
}

func (m *mux[C]) Get(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodGet, pattern, h)
}

func (m *mux[C]) Post(pattern string, h handler.HandlerFunc[C]) {
	m.Method(http.MethodPost, pattern, h)
}

func (m *mux[C]) Handle(pattern string, h handler.HandlerFunc[C]) {
	m.Method("", pattern, h)
}

func (m *mux[C]) Method(method, pattern string, h handler.HandlerFunc[C]) {
	full := pattern
	if method != "" {
		full = method + " " + pattern
	}
	m.mux.Handle(full, m.serve(handler.Chain(h, m.middlewares...)))

	m.shared.mu.Lock()
	m.routes = append(m.routes, Route{Method: method, Pattern: pattern})
	m.shared.mu.Unlock()
}

func (m *mux[C]) Use(middlewares ...handler.Middleware[C]) {
	m.middlewares = append(m.middlewares, middlewares...)
}

func (m *mux[C]) With(middlewares ...handler.Middleware[C]) Router[C] {
	return &mux[C]{
		shared:      m.shared,
		middlewares: append(slices.Clip(m.middlewares), middlewares...),
	}
}

func (m *mux[C]) Group(fn func(r Router[C])) Router[C] {
	child := m.With()
	if fn != nil {
		fn(child)
	}
	return child
}

func (m *mux[C]) Routes() []Route {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	return slices.Clone(m.routes)
}

func (m *mux[C]) serve(h handler.HandlerFunc[C]) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &writer{ResponseWriter: w}
		ctx := m.newContext(ww, r)

		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("panic: %v", p)
				m.logger.ErrorContext(r.Context(), "handler panic",
					logger.Error(err), logger.Method(r.Method), logger.Path(r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				if !ww.written {
					m.errorHandler(ctx, err)
				}
			}
		}()

		resp := h(ctx)
		if resp == nil {
			return
		}
		if err := resp(ctx.ResponseWriter(), ctx.Request()); err != nil {
			if ww.written {
				m.logger.ErrorContext(r.Context(), "error after response was written",
					logger.Error(err), logger.Method(r.Method), logger.Path(r.URL.Path))
				return
			}
			m.errorHandler(ctx, err)
		}
	})
}

// writer records whether the header has been sent.
type writer struct {
	http.ResponseWriter
	written bool
}

func (w *writer) WriteHeader(code int) {
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *writer) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

func (w *writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
