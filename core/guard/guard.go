package guard

import (
	"context"
	"net/url"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/session"
)

// State is the observable guard state.
type State uint8

const (
	Loading State = iota
	Redirecting
	Authorized
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Redirecting:
		return "redirecting"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Decision is the outcome of one guard evaluation. Target is set only when
// State is Redirecting.
type Decision struct {
	State  State
	Target string
}

// Source is the read side of the session the guard consults.
type Source interface {
	IsHydrated() bool
	WaitHydrated(ctx context.Context) error
	Current() (session.Session, bool)
}

// Observer receives every decision; used for metrics.
type Observer interface {
	ObserveGuardDecision(kind, state string)
}

// Guard evaluates access rules. The zero value is not usable; call New.
type Guard struct {
	loginPath     string
	redirectParam string
	observer      Observer
}

// Option configures a Guard.
type Option func(*Guard)

// WithLoginPath sets the login page path (default "/login").
func WithLoginPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithRedirectParam sets the query parameter carrying the resume target
// (default "redirect").
func WithRedirectParam(name string) Option {
	return func(g *Guard) {
		if name != "" {
			g.redirectParam = name
		}
	}
}

// WithObserver reports every decision to o.
func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

// New creates a Guard.
func New(opts ...Option) *Guard {
	g := &Guard{
		loginPath:     "/login",
		redirectParam: "redirect",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Protect decides access to a protected path. With no roles any
// authenticated user is allowed. A role mismatch sends the user to their own
// landing page, or to "/" when the role is unknown.
func (g *Guard) Protect(src Source, requestedPath string, roles ...account.Role) Decision {
	d := g.protect(src, requestedPath, roles)
	g.observe("protect", d)
	return d
}

func (g *Guard) protect(src Source, requestedPath string, roles []account.Role) Decision {
	if !src.IsHydrated() {
		return Decision{State: Loading}
	}
	cur, ok := src.Current()
	if !ok {
		return Decision{State: Redirecting, Target: g.LoginURL(requestedPath)}
	}
	if len(roles) == 0 {
		return Decision{State: Authorized}
	}
	for _, r := range roles {
		if cur.Identity.Role == r {
			return Decision{State: Authorized}
		}
	}
	target := Landing(cur.Identity.Role)
	if target == requestedPath {
		target = "/"
	}
	return Decision{State: Redirecting, Target: target}
}

// GuestOnly is the inverse guard for login and registration pages: an
// authenticated user is sent to their landing page.
func (g *Guard) GuestOnly(src Source) Decision {
	var d Decision
	switch cur, ok := src.Current(); {
	case !src.IsHydrated():
		d = Decision{State: Loading}
	case ok:
		d = Decision{State: Redirecting, Target: Landing(cur.Identity.Role)}
	default:
		d = Decision{State: Authorized}
	}
	g.observe("guest_only", d)
	return d
}

// Await blocks until src is hydrated, then evaluates. If ctx ends first the
// Loading decision is returned with ctx's error.
func (g *Guard) Await(ctx context.Context, src Source, evaluate func(*Guard, Source) Decision) (Decision, error) {
	if err := src.WaitHydrated(ctx); err != nil {
		return Decision{State: Loading}, err
	}
	return evaluate(g, src), nil
}

// LoginURL builds the login location carrying a sanitised resume target.
func (g *Guard) LoginURL(resume string) string {
	resume = SafeRedirect(resume, "")
	if resume == "" || resume == g.loginPath {
		return g.loginPath
	}
	return g.loginPath + "?" + url.Values{g.redirectParam: {resume}}.Encode()
}

// ResumeTarget extracts the resume target from a login request's query,
// falling back to fallback when it is missing or unsafe.
func (g *Guard) ResumeTarget(query url.Values, fallback string) string {
	return SafeRedirect(query.Get(g.redirectParam), fallback)
}

func (g *Guard) observe(kind string, d Decision) {
	if g.observer != nil {
		g.observer.ObserveGuardDecision(kind, d.State.String())
	}
}
