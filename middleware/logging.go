package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
)

// RequestObserver receives per-request measurements; *metrics.Metrics
// implements it.
type RequestObserver interface {
	ObserveRequest(method, status string, seconds float64)
}

// Logging logs one line per request with status and duration. 5xx are
// logged at error level, 4xx at warn.
func Logging[C handler.Context](log *slog.Logger) handler.Middleware[C] {
	return instrument[C](log, nil)
}

// Metrics records request counts and durations.
func Metrics[C handler.Context](obs RequestObserver) handler.Middleware[C] {
	return instrument[C](nil, obs)
}

func instrument[C handler.Context](log *slog.Logger, obs RequestObserver) handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			start := time.Now()
			req := ctx.Request()
			resp := next(ctx)

			return func(w http.ResponseWriter, r *http.Request) error {
				sw := &statusWriter{ResponseWriter: w}
				var err error
				if resp != nil {
					err = resp(sw, r)
				}
				status := sw.code(err)
				elapsed := time.Since(start)

				if obs != nil {
					obs.ObserveRequest(req.Method, strconv.Itoa(status), elapsed.Seconds())
				}
				if log == nil {
					return err
				}

				attrs := []slog.Attr{
					logger.Component("http"),
					logger.Method(req.Method),
					logger.Path(req.URL.Path),
					logger.StatusCode(status),
					logger.Duration(elapsed),
				}
				if id, ok := GetRequestID(ctx); ok {
					attrs = append(attrs, logger.RequestID(id))
				}
				if rt, ok := GetRuntime(ctx); ok {
					attrs = append(attrs, logger.ClientID(rt.ClientID))
				}
				if err != nil {
					attrs = append(attrs, logger.Error(err))
				}

				level := slog.LevelInfo
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400:
					level = slog.LevelWarn
				}
				log.LogAttrs(r.Context(), level, "request", attrs...)
				return err
			}
		}
	}
}
