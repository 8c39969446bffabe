package middleware

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/guard"
	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/response"
)

var errNoRuntime = response.NewHTTPError(http.StatusInternalServerError, "", nil)

// Loading is the neutral placeholder rendered while the session is not yet
// restored. It reloads the same URL shortly.
func Loading(r *http.Request) handler.Response {
	return response.Refresh(r.URL.RequestURI(), time.Second, response.Text("Loading…", http.StatusOK))
}

// RequireRole lets through authenticated users whose role is one of roles
// (any role when none given). Others are redirected as decided by g.
func RequireRole[C handler.Context](g *guard.Guard, roles ...account.Role) handler.Middleware[C] {
	return guarded[C](g, func(g *guard.Guard, src guard.Source, r *http.Request) guard.Decision {
		return g.Protect(src, resumePath(r, roles), roles...)
	})
}

// resumePath is the page to come back to after login. Only GET and HEAD can
// be replayed by a redirect; other methods resume at the section landing.
func resumePath(r *http.Request, roles []account.Role) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	if len(roles) == 1 {
		return guard.Landing(roles[0])
	}
	return ""
}

// GuestOnly keeps authenticated users away from login and registration pages.
func GuestOnly[C handler.Context](g *guard.Guard) handler.Middleware[C] {
	return guarded[C](g, func(g *guard.Guard, src guard.Source, _ *http.Request) guard.Decision {
		return g.GuestOnly(src)
	})
}

func guarded[C handler.Context](g *guard.Guard, eval func(*guard.Guard, guard.Source, *http.Request) guard.Decision) handler.Middleware[C] {
	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			rt, ok := GetRuntime(ctx)
			if !ok {
				return response.Error(errNoRuntime)
			}
			r := ctx.Request()
			d, err := g.Await(ctx, rt.Session, func(g *guard.Guard, src guard.Source) guard.Decision {
				return eval(g, src, r)
			})
			if err != nil {
				return Loading(r)
			}
			switch d.State {
			case guard.Authorized:
				return next(ctx)
			case guard.Redirecting:
				return response.Redirect(d.Target)
			default:
				return Loading(r)
			}
		}
	}
}
