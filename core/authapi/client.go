// Package authapi is the auth gateway: a thin client over the backend's
// /auth endpoints. It never retries; a failed call is returned immediately
// with an error that unwraps to ErrInvalidCredentials, ErrNetwork or ErrServer.
package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/backend"
)

// Client talks to the backend auth endpoints.
type Client struct {
	transport *backend.Client
	validate  *validator.Validate
}

// Option configures Client.
type Option func(*options)

type options struct {
	backend []backend.Option
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.backend = append(o.backend, backend.WithHTTPClient(hc)) }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.backend = append(o.backend, backend.WithTimeout(d)) }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.backend = append(o.backend, backend.WithLogger(l)) }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		transport: backend.New(baseURL, o.backend...),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

type tokenFields struct {
	Token       string            `json:"token"`
	AccessToken string            `json:"accessToken"`
	User        *account.Identity `json:"user"`
}

type loginResponse struct {
	tokenFields
	Success *bool        `json:"success"`
	Message string       `json:"message"`
	Data    *tokenFields `json:"data"`
}

func (r loginResponse) credentials() (account.Identity, string) {
	fields := r.tokenFields
	if r.Data != nil {
		fields = *r.Data
	}
	token := fields.Token
	if token == "" {
		token = fields.AccessToken
	}
	var identity account.Identity
	if fields.User != nil {
		identity = *fields.User
	}
	return identity, token
}

type statusResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Valid   *bool  `json:"valid"`
}

// Login exchanges credentials for an identity and bearer token.
func (c *Client) Login(ctx context.Context, creds account.Credentials) (account.Identity, string, error) {
	const op = "login"

	if err := c.check(op, creds); err != nil {
		return account.Identity{}, "", err
	}

	var resp loginResponse
	err := c.transport.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   creds,
	}, &resp)
	if err != nil {
		return account.Identity{}, "", classify(op, err)
	}
	if resp.Success != nil && !*resp.Success {
		return account.Identity{}, "", &Error{Kind: ErrInvalidCredentials, Op: op, Message: resp.Message}
	}

	identity, token := resp.credentials()
	if token == "" || !identity.Valid() {
		return account.Identity{}, "", &Error{Kind: ErrServer, Op: op, Message: "login response is missing token or user"}
	}
	return identity, token, nil
}

// Logout invalidates token on the backend. Callers treat it as best-effort.
func (c *Client) Logout(ctx context.Context, token string) error {
	err := c.transport.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Token:  token,
	}, nil)
	if err != nil {
		return classify("logout", err)
	}
	return nil
}

// Me returns the profile behind token.
func (c *Client) Me(ctx context.Context, token string) (account.Identity, error) {
	const op = "me"

	var raw json.RawMessage
	err := c.transport.Do(ctx, backend.Request{
		Method: http.MethodGet,
		Path:   "/auth/me",
		Token:  token,
	}, &raw)
	if err != nil {
		return account.Identity{}, classify(op, err)
	}

	var identity account.Identity
	if err := json.Unmarshal(backend.Unwrap(raw, "data", "user"), &identity); err != nil {
		return account.Identity{}, &Error{Kind: ErrServer, Op: op, Err: err}
	}
	if !identity.Valid() {
		return account.Identity{}, &Error{Kind: ErrServer, Op: op, Message: "profile response is missing id or role"}
	}
	return identity, nil
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpRequest struct {
	Email   string `json:"email" validate:"required,email"`
	OTPCode string `json:"otpCode" validate:"required"`
}

type resetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTPCode     string `json:"otpCode" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ForgotPassword asks the backend to send a one-time code to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.post(ctx, "forgot_password", "/auth/password/forgot", emailRequest{Email: email})
}

// VerifyOTP checks a one-time code before the reset form is shown.
func (c *Client) VerifyOTP(ctx context.Context, email, otpCode string) (string, error) {
	return c.post(ctx, "verify_otp", "/auth/password/verify-otp", otpRequest{Email: email, OTPCode: otpCode})
}

// ResetPassword sets a new password using a verified one-time code.
func (c *Client) ResetPassword(ctx context.Context, email, otpCode, newPassword string) (string, error) {
	return c.post(ctx, "reset_password", "/auth/password/reset", resetRequest{
		Email: email, OTPCode: otpCode, NewPassword: newPassword,
	})
}

// ResendVerification asks the backend to resend the account verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	return c.post(ctx, "resend_verification", "/auth/email/resend-verification", emailRequest{Email: email})
}

// VerifyResetToken checks a reset-link token.
func (c *Client) VerifyResetToken(ctx context.Context, token string) error {
	const op = "verify_reset_token"

	if strings.TrimSpace(token) == "" {
		return &Error{Kind: ErrInvalidCredentials, Op: op, Message: "reset token is required"}
	}

	var resp statusResponse
	err := c.transport.Do(ctx, backend.Request{
		Method:   http.MethodGet,
		Path:     "/auth/password/verify-token",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}, &resp)
	if err != nil {
		return classify(op, err)
	}
	if (resp.Valid != nil && !*resp.Valid) || (resp.Success != nil && !*resp.Success) {
		return &Error{Kind: ErrInvalidCredentials, Op: op, Message: resp.Message}
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (string, error) {
	if err := c.check(op, body); err != nil {
		return "", err
	}

	var resp statusResponse
	if err := c.transport.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	}, &resp); err != nil {
		return "", classify(op, err)
	}
	if resp.Success != nil && !*resp.Success {
		return "", &Error{Kind: ErrInvalidCredentials, Op: op, Message: resp.Message}
	}
	return resp.Message, nil
}

func (c *Client) check(op string, v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: ErrInvalidCredentials, Op: op, Err: err}
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	msg := field + " is invalid"
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = field + " must be a valid email address"
	}
	return &Error{Kind: ErrInvalidCredentials, Op: op, Message: msg}
}

// classify maps transport errors onto the auth error kinds.
func classify(op string, err error) error {
	var se *backend.StatusError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrNetwork, Op: op, Err: err}
	case errors.Is(err, backend.ErrTransport):
		return &Error{Kind: ErrNetwork, Op: op, Err: err}
	case errors.Is(err, backend.ErrDecode):
		return &Error{Kind: ErrServer, Op: op, Err: err}
	case errors.As(err, &se):
		kind := ErrServer
		if se.Status >= 400 && se.Status < 500 &&
			se.Status != http.StatusRequestTimeout && se.Status != http.StatusTooManyRequests {
			kind = ErrInvalidCredentials
		}
		return &Error{Kind: kind, Op: op, Status: se.Status, Message: se.Message}
	default:
		return &Error{Kind: ErrServer, Op: op, Err: err}
	}
}
