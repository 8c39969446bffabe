// Package health provides probe handlers for the portal.
//
//	r.Get("/health/live", health.Liveness[*portal.Context])
//	r.Get("/healthz", health.Readiness[*portal.Context](log, 2*time.Second, map[string]health.Check{
//		"redis":    redis.Healthcheck(client),
//		"postgres": pg.Healthcheck(pool),
//	}))
package health

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/response"
)

// Check probes one dependency.
type Check func(context.Context) error

// Liveness reports that the process is serving. It checks nothing.
func Liveness[C handler.Context](C) handler.Response {
	return response.Text("ALIVE", http.StatusOK)
}

// Readiness runs every check, in name order, under a shared timeout and
// answers 503 naming the first dependency that fails.
func Readiness[C handler.Context](log *slog.Logger, timeout time.Duration, checks map[string]Check) handler.HandlerFunc[C] {
	if log == nil {
		log = logger.Discard()
	}
	names := slices.Sorted(maps.Keys(checks))

	return func(ctx C) handler.Response {
		checkCtx := context.Context(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			checkCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		for _, name := range names {
			if err := checks[name](checkCtx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Component(name), logger.Error(err))
				return response.Error(response.NewHTTPError(http.StatusServiceUnavailable, name+" unavailable", err))
			}
		}
		return response.Text("READY", http.StatusOK)
	}
}
