package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/guard"
	"github.com/dmitrymomot/evservice/core/handler"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/core/response"
	"github.com/dmitrymomot/evservice/middleware"
)

const (
	noticePaymentSuccess = "Your payment was successful. Log in to see your booking."
	noticePasswordReset  = "Your password has been updated. Log in with your new password."
	noticeCodeSent       = "We sent a verification code to your email."
	noticeCodeVerified   = "Code verified. Choose a new password."
	noticeVerification   = "If the address belongs to an unverified account, a new verification email is on its way."
)

var errNoRuntime = response.NewHTTPError(http.StatusInternalServerError, "", errors.New("portal: client runtime missing"))

func runtimeOf(ctx *Context) (*middleware.Runtime, bool) {
	return middleware.GetRuntime(ctx)
}

// authStatus maps an auth failure to the status of the re-rendered form.
func authStatus(err error, rejected int) int {
	switch {
	case errors.Is(err, authapi.ErrInvalidCredentials):
		return rejected
	case errors.Is(err, authapi.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, authapi.ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// loginPage shows the login form. A pending payment-success marker is
// consumed here so the banner appears once.
func (app *App) loginPage(ctx *Context) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}

	v := view{Title: "Log in"}
	marker, err := clientstore.Take(ctx, rt.ShortLived, clientstore.KeyPaymentSuccess)
	switch {
	case err == nil && marker == "true":
		v.Notice = noticePaymentSuccess
	case err != nil && !errors.Is(err, clientstore.ErrNotFound):
		app.logger.WarnContext(ctx, "reading payment success marker failed", logger.Error(err))
	}
	if v.Notice == "" && ctx.Request().URL.Query().Get("reset") == "1" {
		v.Notice = noticePasswordReset
	}
	return app.pages.render(pageLogin, http.StatusOK, v)
}

func (app *App) login(ctx *Context) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}

	identity, err := rt.Session.Login(ctx, account.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		return app.pages.render(pageLogin, authStatus(err, http.StatusUnauthorized), view{
			Title: "Log in",
			Error: authapi.Message(err),
			Form:  formValues(r, "username"),
		})
	}

	app.logger.InfoContext(ctx, "user logged in",
		logger.UserID(identity.ID), logger.Role(identity.Role.String()), logger.ClientID(rt.ClientID))
	return response.RedirectSeeOther(app.guard.ResumeTarget(r.URL.Query(), guard.Landing(identity.Role)))
}

func (app *App) logout(ctx *Context) handler.Response {
	rt, ok := runtimeOf(ctx)
	if !ok {
		return response.Error(errNoRuntime)
	}
	rt.Session.Logout(ctx)
	return response.RedirectSeeOther("/login")
}

func (app *App) registerPage(ctx *Context) handler.Response {
	return app.pages.render(pageRegister, http.StatusOK, view{Title: "Create an account"})
}

func (app *App) resendVerification(ctx *Context) handler.Response {
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}
	v := view{Title: "Create an account", Form: formValues(r, "email")}

	msg, err := app.auth.ResendVerification(ctx, strings.TrimSpace(v.Form["email"]))
	if err != nil {
		v.Error = authapi.Message(err)
		return app.pages.render(pageRegister, authStatus(err, http.StatusUnprocessableEntity), v)
	}
	v.Notice = withDefault(msg, noticeVerification)
	return app.pages.render(pageRegister, http.StatusOK, v)
}

// Password reset steps rendered by password.html.
const (
	stepEmail = "email"
	stepOTP   = "otp"
	stepReset = "reset"
)

func (app *App) forgotPasswordPage(ctx *Context) handler.Response {
	return app.pages.render(pagePassword, http.StatusOK, view{Title: "Reset password", Data: stepEmail})
}

func (app *App) forgotPassword(ctx *Context) handler.Response {
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}
	form := formValues(r, "email")

	msg, err := app.auth.ForgotPassword(ctx, strings.TrimSpace(form["email"]))
	if err != nil {
		return app.passwordStep(stepEmail, form, "", err)
	}
	return app.passwordStep(stepOTP, form, withDefault(msg, noticeCodeSent), nil)
}

func (app *App) verifyOTP(ctx *Context) handler.Response {
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}
	form := formValues(r, "email", "otpCode")

	msg, err := app.auth.VerifyOTP(ctx, strings.TrimSpace(form["email"]), strings.TrimSpace(form["otpCode"]))
	if err != nil {
		return app.passwordStep(stepOTP, form, "", err)
	}
	return app.passwordStep(stepReset, form, withDefault(msg, noticeCodeVerified), nil)
}

func (app *App) resetPassword(ctx *Context) handler.Response {
	r := ctx.Request()
	if err := r.ParseForm(); err != nil {
		return response.Error(response.ErrBadRequest)
	}
	form := formValues(r, "email", "otpCode")

	_, err := app.auth.ResetPassword(ctx,
		strings.TrimSpace(form["email"]), strings.TrimSpace(form["otpCode"]), r.PostFormValue("newPassword"))
	if err != nil {
		return app.passwordStep(stepReset, form, "", err)
	}
	return response.RedirectSeeOther("/login?reset=1")
}

func (app *App) passwordStep(step string, form map[string]string, notice string, err error) handler.Response {
	v := view{Title: "Reset password", Form: form, Notice: notice, Data: step}
	status := http.StatusOK
	if err != nil {
		v.Error = authapi.Message(err)
		status = authStatus(err, http.StatusUnprocessableEntity)
	}
	return app.pages.render(pagePassword, status, v)
}

func withDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
