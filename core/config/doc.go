// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// A .env file in the working directory is loaded on first use (godotenv), then
// caarlos0/env parses struct tags and go-playground/validator checks any
// `validate` tags:
//
//	type BackendConfig struct {
//		URL     string        `env:"BACKEND_URL,required" validate:"url"`
//		Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
//	}
//
//	var backend BackendConfig
//	if err := config.Load(&backend); err != nil {
//		log.Fatal(err)
//	}
//
// MustLoad panics instead of returning an error and is meant for startup code.
package config
