package payment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrymomot/evservice/core/backend"
)

// Verifier checks a gateway return query with the backend.
type Verifier interface {
	Verify(ctx context.Context, rawQuery string) (Confirmation, error)
}

// Client talks to the backend's VNPay endpoints.
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

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		transport: backend.New(baseURL, o.backend...),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

type verifyResponse struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Verify forwards the gateway query string unchanged to GET /vnpay/return.
func (c *Client) Verify(ctx context.Context, rawQuery string) (Confirmation, error) {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return Confirmation{}, &VerificationError{Kind: ErrGatewayRejected, Message: "Missing payment parameters."}
	}

	var resp verifyResponse
	err := c.transport.Do(ctx, backend.Request{
		Method:   http.MethodGet,
		Path:     "/vnpay/return",
		RawQuery: rawQuery,
	}, &resp)
	if err != nil {
		return Confirmation{}, classify(err)
	}
	if resp.Success == nil {
		return Confirmation{}, &VerificationError{Kind: ErrMalformedResponse, Err: errors.New("missing success field")}
	}
	if !*resp.Success {
		return Confirmation{}, &VerificationError{Kind: ErrGatewayRejected, Message: resp.Message}
	}

	var conf Confirmation
	if data := strings.TrimSpace(string(resp.Data)); data != "" && data != "null" {
		if err := json.Unmarshal(resp.Data, &conf); err != nil {
			return Confirmation{}, &VerificationError{Kind: ErrMalformedResponse, Err: err}
		}
	}
	if conf.Message == "" {
		conf.Message = resp.Message
	}
	return conf, nil
}

// PaymentRequest asks the backend for a hosted-payment URL.
type PaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	OrderInfo string `json:"orderInfo,omitempty"`
	BankCode  string `json:"bankCode,omitempty"`
	ReturnURL string `json:"returnUrl,omitempty" validate:"omitempty,url"`
}

type paymentURLFields struct {
	PaymentURL string `json:"paymentUrl"`
	URL        string `json:"url"`
}

// CreatePaymentURL calls POST /vnpay/create-payment-url and returns the
// gateway URL the browser should be sent to.
func (c *Client) CreatePaymentURL(ctx context.Context, token string, req PaymentRequest) (string, error) {
	if err := c.validate.Struct(req); err != nil {
		return "", errors.Join(ErrInvalidRequest, err)
	}

	var raw json.RawMessage
	err := c.transport.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/vnpay/create-payment-url",
		Token:  token,
		Body:   req,
	}, &raw)
	if err != nil {
		return "", classify(err)
	}

	var fields paymentURLFields
	if err := json.Unmarshal(backend.Unwrap(raw, "data"), &fields); err != nil {
		return "", &VerificationError{Kind: ErrMalformedResponse, Err: err}
	}
	u := fields.PaymentURL
	if u == "" {
		u = fields.URL
	}
	if u == "" {
		return "", &VerificationError{Kind: ErrMalformedResponse, Err: errors.New("missing payment url")}
	}
	return u, nil
}

// classify maps transport errors onto the verification kinds. A 4xx means the
// backend looked at the payment and refused it; 5xx and transport failures
// mean it could not be confirmed either way.
func classify(err error) error {
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrDecode):
		return &VerificationError{Kind: ErrMalformedResponse, Err: err}
	case errors.As(err, &se) && se.Status >= 400 && se.Status < 500:
		return &VerificationError{Kind: ErrGatewayRejected, Status: se.Status, Message: se.Message}
	case errors.As(err, &se):
		return &VerificationError{Kind: ErrNetwork, Status: se.Status, Message: se.Message}
	default:
		return &VerificationError{Kind: ErrNetwork, Err: err}
	}
}
