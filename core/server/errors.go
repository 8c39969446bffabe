package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server address is required")
	ErrLoadCertificate      = errors.New("failed to load TLS certificate")
	ErrServerAlreadyRunning = errors.New("server is already running")
)
