package portal

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/guard"
	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/health"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/response"
	"github.com/dmitrymomot/evservice/core/router"
	"github.com/dmitrymomot/evservice/core/session"
	"github.com/dmitrymomot/evservice/middleware"
)

const healthTimeout = 2 * time.Second

func (app *App) routes() {
	r := app.router
	r.Use(
		middleware.RequestID[*Context](),
		middleware.Logging[*Context](app.logger.With(logger.Component("http"))),
		middleware.Metrics[*Context](app.metrics),
	)

	r.Get("/health/live", health.Liveness[*Context])
	r.Get("/healthz", health.Readiness[*Context](app.logger, healthTimeout, app.healthChecks()))
	r.Get("/metrics", app.metricsHandler())

	c := r.With(middleware.ClientRuntime[*Context](middleware.ClientRuntimeConfig{
		Cookies:    app.cookie,
		Durable:    app.durable,
		ShortLived: app.shortLived,
		Gateway:    app.auth,
		SessionOptions: []session.Option{
			session.WithObserver(app.metrics),
		},
		Logger: app.logger.With(logger.Component("session")),
	}))

	c.Get("/{$}", app.home)
	c.Get("/payment/vnpay-return", app.paymentReturn)

	c.Group(func(guest router.Router[*Context]) {
		guest.Use(middleware.GuestOnly[*Context](app.guard))
		guest.Get("/login", app.loginPage)
		guest.Post("/login", app.login)
		guest.Get("/register", app.registerPage)
		guest.Post("/resend-verification", app.resendVerification)
		guest.Get("/forgot-password", app.forgotPasswordPage)
		guest.Post("/forgot-password", app.forgotPassword)
		guest.Post("/verify-otp", app.verifyOTP)
		guest.Post("/reset-password", app.resetPassword)
	})

	c.With(middleware.RequireRole[*Context](app.guard)).Post("/logout", app.logout)

	c.Group(func(customer router.Router[*Context]) {
		customer.Use(middleware.RequireRole[*Context](app.guard, account.RoleCustomer))
		customer.Get("/customer", app.dashboard(account.RoleCustomer, "Customer dashboard"))
		customer.Get("/customer/bookings", app.bookings)
		customer.Post("/customer/bookings/checkout", app.checkout)
	})
	c.With(middleware.RequireRole[*Context](app.guard, account.RoleStaff)).
		Get("/staff", app.dashboard(account.RoleStaff, "Staff workspace"))
	c.With(middleware.RequireRole[*Context](app.guard, account.RoleTechnician)).
		Get("/technician", app.dashboard(account.RoleTechnician, "Technician workspace"))
	c.With(middleware.RequireRole[*Context](app.guard, account.RoleAdmin)).
		Get("/admin", app.dashboard(account.RoleAdmin, "Administration"))
}

func (app *App) metricsHandler() handler.HandlerFunc[*Context] {
	h := promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry})
	return func(*Context) handler.Response {
		return response.Handler(h)
	}
}

func (app *App) home(ctx *Context) handler.Response {
	v := view{Title: "Home", User: currentUser(ctx)}
	if v.User != nil {
		v.Data = guard.Landing(v.User.Role)
	}
	return app.pages.render(pageHome, http.StatusOK, v)
}

func (app *App) dashboard(section account.Role, title string) handler.HandlerFunc[*Context] {
	return func(ctx *Context) handler.Response {
		return app.pages.render(pageDashboard, http.StatusOK, view{
			Title: title,
			User:  currentUser(ctx),
			Data:  section.String(),
		})
	}
}
