package authapi

import "time"

// Config holds backend connection settings shared by the auth and payment clients.
type Config struct {
	BaseURL string        `env:"BACKEND_URL" envDefault:"http://localhost:8081/api" validate:"required,url"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
}

// NewFromConfig creates a Client from cfg.
func NewFromConfig(cfg Config, opts ...Option) *Client {
	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	return New(cfg.BaseURL, opts...)
}
