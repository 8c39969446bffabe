package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/config"
	"github.com/dmitrymomot/evservice/core/cookie"
	"github.com/dmitrymomot/evservice/core/guard"
	"github.com/dmitrymomot/evservice/core/health"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/metrics"
	"github.com/dmitrymomot/evservice/core/payment"
	"github.com/dmitrymomot/evservice/core/router"
	"github.com/dmitrymomot/evservice/core/server"
	"github.com/dmitrymomot/evservice/core/session"
)

// AuthService is the backend surface the portal uses for accounts.
// *authapi.Client implements it.
type AuthService interface {
	session.Gateway
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, otpCode string) (string, error)
	ResetPassword(ctx context.Context, email, otpCode, newPassword string) (string, error)
	ResendVerification(ctx context.Context, email string) (string, error)
}

// PaymentService is the backend surface for VNPay. *payment.Client
// implements it.
type PaymentService interface {
	payment.Verifier
	CreatePaymentURL(ctx context.Context, token string, req payment.PaymentRequest) (string, error)
}

type App struct {
	config     Config
	configured bool

	router   router.Router[*Context]
	server   *server.Server
	cookie   *cookie.Manager
	auth     AuthService
	payments PaymentService
	guard    *guard.Guard
	pages    pages

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	durable    clientstore.Storage
	shortLived clientstore.Storage
	backends   *backends

	logger *slog.Logger
}

type AppOption func(*App) error

// NewApp assembles the portal. Anything not supplied through options is
// built from Config, which is loaded from the environment unless WithConfig
// is given.
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	app := &App{logger: logger.New()}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if !app.configured {
		if err := config.Load(&app.config); err != nil {
			return nil, err
		}
	}

	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	if app.registry == nil {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	app.metrics = metrics.New(app.registry)

	if app.durable == nil || app.shortLived == nil {
		b, err := openBackends(ctx, app.config, app.logger)
		if err != nil {
			return err
		}
		app.backends = b
		if app.durable == nil {
			app.durable = b.durable
		}
		if app.shortLived == nil {
			app.shortLived = b.shortLived
		}
	}

	if app.cookie == nil {
		cm, err := cookie.NewFromConfig(app.config.Cookie)
		if err != nil {
			return err
		}
		app.cookie = cm
	}

	if app.auth == nil {
		app.auth = authapi.NewFromConfig(app.config.Backend,
			authapi.WithLogger(app.logger.With(logger.Component("authapi"))))
	}
	if app.payments == nil {
		app.payments = payment.NewClient(app.config.Backend.BaseURL,
			payment.WithTimeout(app.config.Backend.Timeout),
			payment.WithLogger(app.logger.With(logger.Component("payment"))))
	}

	if app.server == nil {
		s, err := server.NewFromConfig(app.config.Server, server.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.server = s
	}

	p, err := parsePages()
	if err != nil {
		return err
	}
	app.pages = p

	app.guard = guard.New(guard.WithObserver(app.metrics))
	if app.router == nil {
		app.router = router.New[*Context](newContext,
			router.WithLogger[*Context](app.logger))
	}
	app.routes()
	return nil
}

// Handler returns the portal's HTTP handler.
func (app *App) Handler() http.Handler {
	return app.router
}

// Run serves the portal until ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	if app.backends != nil {
		go sweepExpired(ctx, app.backends.sweep, app.config.Storage.SweepInterval,
			app.logger.With(logger.Component("storage")))
	}
	return app.server.Run(ctx, app.router)
}

// Close releases storage connections opened by NewApp.
func (app *App) Close() {
	if app.backends != nil {
		app.backends.close()
	}
}

// healthChecks returns the storage probes served at /healthz.
func (app *App) healthChecks() map[string]health.Check {
	if app.backends == nil {
		return nil
	}
	return app.backends.checks
}

// currentUser returns the signed-in identity, or nil.
func currentUser(ctx *Context) *account.Identity {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return nil
	}
	s, ok := rt.Session.Current()
	if !ok {
		return nil
	}
	return &s.Identity
}

func WithConfig(cfg Config) AppOption {
	return func(app *App) error {
		app.config = cfg
		app.configured = true
		return nil
	}
}

func WithLogger(logger *slog.Logger) AppOption {
	return func(app *App) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = logger
		return nil
	}
}

func WithRouter(router router.Router[*Context]) AppOption {
	return func(app *App) error {
		if router == nil {
			return errors.New("router cannot be nil")
		}
		app.router = router
		return nil
	}
}

func WithServer(server *server.Server) AppOption {
	return func(app *App) error {
		if server == nil {
			return errors.New("server cannot be nil")
		}
		app.server = server
		return nil
	}
}

func WithCookieManager(cookie *cookie.Manager) AppOption {
	return func(app *App) error {
		if cookie == nil {
			return errors.New("cookie manager cannot be nil")
		}
		app.cookie = cookie
		return nil
	}
}

// WithStorage supplies both client storages, skipping backend connections.
func WithStorage(durable, shortLived clientstore.Storage) AppOption {
	return func(app *App) error {
		if durable == nil || shortLived == nil {
			return errors.New("storages cannot be nil")
		}
		app.durable = durable
		app.shortLived = shortLived
		return nil
	}
}

func WithAuthService(auth AuthService) AppOption {
	return func(app *App) error {
		if auth == nil {
			return errors.New("auth service cannot be nil")
		}
		app.auth = auth
		return nil
	}
}

func WithPaymentService(payments PaymentService) AppOption {
	return func(app *App) error {
		if payments == nil {
			return errors.New("payment service cannot be nil")
		}
		app.payments = payments
		return nil
	}
}

// WithRegistry registers portal metrics on reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) AppOption {
	return func(app *App) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		app.registry = reg
		return nil
	}
}
