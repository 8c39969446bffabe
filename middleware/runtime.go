package middleware

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/cookie"
	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/response"
	"github.com/dmitrymomot/evservice/core/session"
)

// DefaultClientCookie names the signed cookie carrying the client id.
const DefaultClientCookie = "evs_client"

// Runtime is the per-browser state for one request: its storage scopes and
// a hydrated session store.
type Runtime struct {
	ClientID   string
	Durable    clientstore.Storage
	ShortLived clientstore.Storage
	Session    *session.Store
}

// ClientRuntimeConfig configures ClientRuntime. Cookies, Durable,
// ShortLived and Gateway are required.
type ClientRuntimeConfig struct {
	Cookies    *cookie.Manager
	CookieName string
	Durable    clientstore.Storage
	ShortLived clientstore.Storage
	Gateway    session.Gateway
	// SessionOptions are passed to every session.Store.
	SessionOptions []session.Option
	Logger         *slog.Logger
}

type runtimeKey struct{}

// ClientRuntime identifies the browser by its signed client cookie (issuing
// one when missing or invalid), scopes storage to it and restores the
// session. Hydration completes before next runs.
func ClientRuntime[C handler.Context](cfg ClientRuntimeConfig) handler.Middleware[C] {
	if cfg.Cookies == nil || cfg.Durable == nil || cfg.ShortLived == nil || cfg.Gateway == nil {
		panic("middleware: ClientRuntime requires cookies, storages and gateway")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultClientCookie
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			clientID, err := cfg.Cookies.GetSigned(ctx.Request(), cfg.CookieName)
			if err == nil {
				if _, perr := uuid.Parse(clientID); perr != nil {
					err = cookie.ErrInvalidFormat
				}
			}
			if err != nil {
				if !errors.Is(err, cookie.ErrNotFound) {
					cfg.Logger.WarnContext(ctx, "replacing invalid client cookie", logger.Error(err))
				}
				clientID = uuid.NewString()
				if err := cfg.Cookies.SetSigned(ctx.ResponseWriter(), cfg.CookieName, clientID); err != nil {
					return response.Error(err)
				}
			}

			prefix := "client:" + clientID
			rt := &Runtime{
				ClientID:   clientID,
				Durable:    clientstore.Namespace(cfg.Durable, prefix),
				ShortLived: clientstore.Namespace(cfg.ShortLived, prefix),
			}
			opts := append([]session.Option{session.WithLogger(cfg.Logger.With(logger.ClientID(clientID)))}, cfg.SessionOptions...)
			rt.Session = session.NewStore(rt.Durable, cfg.Gateway, opts...)
			rt.Session.Hydrate(ctx)

			ctx.SetValue(runtimeKey{}, rt)
			return next(ctx)
		}
	}
}

// GetRuntime returns the runtime stored by ClientRuntime.
func GetRuntime(ctx interface{ Value(any) any }) (*Runtime, bool) {
	rt, ok := ctx.Value(runtimeKey{}).(*Runtime)
	return rt, ok
}
