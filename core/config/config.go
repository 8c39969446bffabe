package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed.
	ErrParsingConfig = errors.New("failed to parse config from environment")
	// ErrInvalidConfig is returned when a parsed config fails validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNilConfig is returned when Load receives a nil pointer.
	ErrNilConfig = errors.New("config target is nil")
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]any)

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load parses environment variables into cfg. The first call per type parses
// and validates; later calls copy the cached value.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
	})

	typ := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if typ.Kind() == reflect.Struct {
		if err := validate.Struct(&parsed); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}

	cache[typ] = parsed
	*cfg = parsed
	return nil
}

// MustLoad is Load that panics on error. Intended for process startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops cached values. Tests use it between cases that change the environment.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
